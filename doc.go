// Package mangrove is the identity engine behind Mangrove Watch.
//
// An Engine implements identity.Provider on top of Redis (sessions, email
// challenges, throttles) and an AccountStore (accounts and profiles, usually
// PostgreSQL). Build one with New:
//
//	engine, err := mangrove.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithAccountStore(store).
//		WithMailer(mailer).
//		WithLogger(logger).
//		Build()
//
// Errors returned from the identity.Provider methods are safe to show to
// users. Infrastructure failures are reported as ErrServiceUnavailable and
// logged with their cause.
package mangrove
