package stream

//MultiSink fans every event out to several sinks, in order.
type MultiSink []EventSink

//Publish implements EventSink.
func (m MultiSink) Publish(sessionID string, kind EventKind, payload interface{}) {
	for _, s := range m {
		if s != nil {
			s.Publish(sessionID, kind, payload)
		}
	}
}

//SinkFunc adapts a function to an EventSink.
type SinkFunc func(sessionID string, kind EventKind, payload interface{})

//Publish implements EventSink.
func (f SinkFunc) Publish(sessionID string, kind EventKind, payload interface{}) {
	f(sessionID, kind, payload)
}
