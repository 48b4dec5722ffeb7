package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	sphero "github.com/basilfx/go-sphero"
	"github.com/basilfx/go-sphero/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

// session is an open connection to the device.
type session struct {
	cfg  *config.Config
	port serial.Port
	link *sphero.Link
	done chan error
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "spheroctl",
		Short:         "Control a Sphero over its serial port",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the configuration file")

	open := func(ctx context.Context) (*session, error) {
		return openSession(ctx, configPath)
	}

	rootCmd.AddCommand(
		pingCmd(open),
		infoCmd(open),
		colorCmd(open),
		rollCmd(open),
		watchCmd(open),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

type opener func(ctx context.Context) (*session, error)

func openSession(ctx context.Context, path string) (*session, error) {
	cfg, err := config.Load(path)

	if err != nil {
		return nil, err
	}

	level, err := log.ParseLevel(cfg.Logging.Level)

	if err != nil {
		return nil, err
	}

	log.SetLevel(level)

	var opts []sphero.Option

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, sphero.WithMetrics(sphero.NewMetrics(reg)))

		go serveMetrics(ctx, cfg.Metrics.Addr, reg)
	}

	port, err := serial.Open(cfg.Port.Path, &serial.Mode{BaudRate: cfg.Port.BaudRate})

	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port.Path, err)
	}

	log.Debugf("Opened %s at %d baud.", cfg.Port.Path, cfg.Port.BaudRate)

	s := &session{
		cfg:  cfg,
		port: port,
		link: sphero.New(port, opts...),
		done: make(chan error, 1),
	}

	go func() {
		s.done <- s.link.Serve(port)
	}()

	return s, nil
}

func (s *session) context(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.Request.Timeout)
}

func (s *session) Close() error {
	s.link.Shutdown()
	err := s.port.Close()

	if serveErr := <-s.done; serveErr != nil {
		log.Debugf("Link stopped: %v", serveErr)
	}

	return err
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Metrics server failed: %v", err)
	}
}

// run opens a session, calls fn and closes the session again.
func run(cmd *cobra.Command, open opener, fn func(ctx context.Context, s *session) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := open(ctx)

	if err != nil {
		return err
	}

	defer s.Close()

	return fn(ctx, s)
}

func pingCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Ping the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, s *session) error {
				ctx, cancel := s.context(ctx)
				defer cancel()

				if err := s.link.Ping(ctx); err != nil {
					return err
				}

				fmt.Println("pong")

				return nil
			})
		},
	}
}

func infoCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the bluetooth name and firmware version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, s *session) error {
				ctx, cancel := s.context(ctx)
				defer cancel()

				info, err := s.link.GetBluetoothInfo(ctx)

				if err != nil {
					return err
				}

				version, err := s.link.GetVersioning(ctx)

				if err != nil {
					return err
				}

				fmt.Printf("name:    %s\nid:      %s\nversion: % x\n", info.Name, info.ID, version)

				return nil
			})
		},
	}
}

func colorCmd(open opener) *cobra.Command {
	var persist bool

	cmd := &cobra.Command{
		Use:   "color RED GREEN BLUE",
		Short: "Set the color of the main LED",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rgb, err := parseUint8s(args)

			if err != nil {
				return err
			}

			return run(cmd, open, func(ctx context.Context, s *session) error {
				ctx, cancel := s.context(ctx)
				defer cancel()

				return s.link.SetRGBLED(ctx, rgb[0], rgb[1], rgb[2], persist)
			})
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", false, "keep the color after a power cycle")

	return cmd
}

func rollCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "roll SPEED HEADING",
		Short: "Roll at a speed (0-255) and heading (0-359)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			speed, err := strconv.ParseUint(args[0], 10, 8)

			if err != nil {
				return fmt.Errorf("speed: %w", err)
			}

			heading, err := strconv.ParseUint(args[1], 10, 16)

			if err != nil || heading > 359 {
				return fmt.Errorf("heading must be between 0 and 359")
			}

			return run(cmd, open, func(ctx context.Context, s *session) error {
				ctx, cancel := s.context(ctx)
				defer cancel()

				return s.link.Roll(ctx, uint8(speed), uint16(heading), sphero.RollGo)
			})
		},
	}
}

func watchCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print collision and power notifications until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, s *session) error {
				s.link.OnCollision(func(e sphero.CollisionEvent) {
					fmt.Printf("collision: x=%d y=%d z=%d axis=%d magnitude=%d/%d speed=%d t=%d\n",
						e.X, e.Y, e.Z, e.Axis, e.XMagnitude, e.YMagnitude, e.Speed, e.Timestamp)
				})

				s.link.OnPowerState(func(p sphero.PowerState) {
					fmt.Printf("power: %s\n", p)
				})

				requestCtx, cancel := s.context(ctx)
				err := s.link.ConfigureCollisionDetection(requestCtx, sphero.CollisionConfig{
					Method:     0x01,
					XThreshold: 0x40,
					XSpeed:     0x40,
					YThreshold: 0x40,
					YSpeed:     0x40,
					DeadTime:   0x32,
				})
				cancel()

				if err != nil {
					return err
				}

				select {
				case <-ctx.Done():
					return nil
				case err := <-s.done:
					// Put it back for Close.
					s.done <- err

					return err
				}
			})
		},
	}
}

func parseUint8s(args []string) ([]uint8, error) {
	values := make([]uint8, len(args))

	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 8)

		if err != nil {
			return nil, fmt.Errorf("%q is not a value between 0 and 255", arg)
		}

		values[i] = uint8(v)
	}

	return values, nil
}
