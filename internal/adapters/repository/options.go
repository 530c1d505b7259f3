package repository

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithMaxOpenConns bounds the connection pool. SQLite files and in-memory
// databases are forced to a single connection regardless.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithoutMigrations skips schema creation on Open.
func WithoutMigrations() Option {
	return func(s *Store) {
		s.migrate = false
	}
}
