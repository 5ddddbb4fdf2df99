package samsung

// MirrorSink is the remote debug mirror endpoint.
type MirrorSink struct {
	Host     string
	Port     int
	Username string
	Password string
	Prefix   string
}

// Enabled reports whether a remote mirror is configured.
func (m MirrorSink) Enabled() bool { return m.Host != "" }

// DebugSettings are the process-wide debug flags. They are built once at
// startup and shared by pointer; nothing mutates them afterwards.
type DebugSettings struct {
	LogRaw           bool
	LogDecoded       bool
	LogUndefined     bool
	NonNasaKeepAlive bool
	Mirror           MirrorSink
}

// AnyLogging reports whether any mirror flag is set.
func (s *DebugSettings) AnyLogging() bool {
	return s != nil && (s.LogRaw || s.LogDecoded || s.LogUndefined)
}
