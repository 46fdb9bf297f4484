package attendance

// SetTokenSource replaces the token generator for collision tests.
func SetTokenSource(s *Service, f func() (string, error)) {
	s.newToken = f
}
