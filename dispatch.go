package sphero

// dispatch routes one frame: replies to the pending request with the same
// sequence number, notifications to the subscriber of their id.
func (l *Link) dispatch(frame Frame) {
	if l.metrics != nil {
		l.metrics.FramesReceived.WithLabelValues(frame.Kind.String()).Inc()
	}

	switch frame.Kind {
	case KindReply:
		l.dispatchReply(frame)
	case KindNotification:
		l.dispatchNotification(frame)
	}
}

func (l *Link) dispatchReply(frame Frame) {
	l.lock.Lock()
	handler, ok := l.pending.take(frame.Seq)
	l.updatePending()
	l.lock.Unlock()

	status := Status(frame.Code)

	if !ok {
		// Without a pending request nobody can be told, so drop it.
		l.log.Debugf("Dropping %v: status %s, sequence %d.", ErrOrphanReply, status, frame.Seq)

		if l.metrics != nil {
			l.metrics.OrphanReplies.Inc()
		}

		return
	}

	if l.metrics != nil {
		l.metrics.Replies.WithLabelValues(status.String()).Inc()
	}

	response := Response{
		Status: status,
		Seq:    frame.Seq,
		Data:   frame.Data,
	}

	l.log.Debugf("Link incoming: reply seq=%d status=%s % x", frame.Seq, status, frame.Data)

	if status == StatusOK {
		handler(response, nil)
		return
	}

	handler(response, &ProtocolError{Status: status, Response: response})
}

func (l *Link) dispatchNotification(frame Frame) {
	id := AsyncID(frame.Code)

	l.subscribersLock.RLock()
	handler, ok := l.subscribers[id]
	l.subscribersLock.RUnlock()

	if !ok {
		l.log.Debugf("Dropping %s notification without subscriber.", id)
		return
	}

	l.log.Debugf("Link incoming: notification %s % x", id, frame.Data)

	handler(Notification{ID: id, Data: frame.Data})
}
