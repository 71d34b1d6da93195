package repository

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithMaxOpenConns caps the connection pool. SQLite serializes writers, so
// the default is a single connection.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithMaxRuns sets the largest limit ListRuns accepts.
func WithMaxRuns(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxRuns = n
		}
	}
}
