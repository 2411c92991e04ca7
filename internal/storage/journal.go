package storage

import (
	"context"
	"time"

	"zephyrbot/internal/eventbus"
	logx "zephyrbot/pkg/logx"
)

// Journal copies dispatcher bus events into a Store: admitted keys become
// seen records, sent and failed replies become reply records.
type Journal struct {
	store   Store
	log     logx.Logger
	timeout time.Duration
}

func NewJournal(st Store, log logx.Logger) *Journal {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Journal{store: st, log: log, timeout: 2 * time.Second}
}

// Run consumes bus events until ctx ends or the subscription closes.
func (j *Journal) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			j.Handle(ctx, ev)
		}
	}
}

// Handle writes one event. Failures are logged and dropped.
func (j *Journal) Handle(ctx context.Context, ev eventbus.Event) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var err error
	switch ev.Type {
	case eventbus.TopicAdmitted:
		a, ok := ev.Data.(eventbus.Admission)
		if !ok {
			return
		}
		at := a.ReceivedAt
		if at.IsZero() {
			at = ev.Time
		}
		err = j.store.PutSeen(ctx, a.DedupKey, at)
	case eventbus.TopicReplySent, eventbus.TopicReplyFailed:
		r, ok := ev.Data.(eventbus.Reply)
		if !ok {
			return
		}
		err = j.store.AppendReply(ctx, ReplyRecord{
			At:       ev.Time,
			Platform: r.Platform,
			Author:   r.Author,
			TraceID:  r.TraceID,
			Text:     r.Text,
			OK:       ev.Type == eventbus.TopicReplySent,
			Error:    r.Err,
			TookMS:   r.Took.Milliseconds(),
		})
	default:
		return
	}
	if err != nil {
		j.log.Warn("journal write failed", logx.String("event", ev.Type), logx.Err(err))
	}
}
