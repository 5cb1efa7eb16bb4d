package runtime

import (
	"fmt"

	authpkg "github.com/drblury/protowamp/internal/runtime/auth"
	configpkg "github.com/drblury/protowamp/internal/runtime/config"
	loggingpkg "github.com/drblury/protowamp/internal/runtime/logging"
)

// newAuthRegistry registers one negotiator per configured method. The same
// negotiator serves both sides: router sessions verify with the configured
// authid and credential, client sessions answer with them.
func newAuthRegistry(conf *configpkg.Config, log loggingpkg.ServiceLogger, extra []authpkg.Negotiator) (*authpkg.Registry, error) {
	reg := authpkg.NewRegistry(conf.ChallengeTimeout, log)
	for _, method := range conf.AuthMethods {
		switch method {
		case authpkg.MethodAnonymous:
			reg.Register(authpkg.NewAnonymous())
		case authpkg.MethodCRA:
			reg.Register(authpkg.NewChallengeResponse(authpkg.CRAConfig{
				Secret:   conf.AuthSecret,
				Secrets:  authpkg.StaticSecrets(credentials(conf.AuthID, conf.AuthSecret)),
				Role:     conf.AuthRole,
				Provider: conf.AuthProvider,
			}))
		case authpkg.MethodTicket:
			reg.Register(authpkg.NewTicket(authpkg.TicketConfig{
				Ticket:   conf.AuthTicket,
				Verify:   authpkg.StaticTicket(credentials(conf.AuthID, conf.AuthTicket)),
				Role:     conf.AuthRole,
				Provider: conf.AuthProvider,
			}))
		default:
			return nil, fmt.Errorf("%w: %q", authpkg.ErrUnknownAuthMethod, method)
		}
	}
	for _, n := range extra {
		if n == nil {
			continue
		}
		reg.Register(n)
	}
	return reg, nil
}

func credentials(authID, secret string) map[string]string {
	if authID == "" || secret == "" {
		return nil
	}
	return map[string]string{authID: secret}
}
