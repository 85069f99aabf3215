package web

import (
	"github.com/fgrzl/claims"
	"github.com/fgrzl/mux"
	"github.com/fgrzl/obskit/pkg/auth/jwtkit"
	"github.com/fgrzl/obskit/pkg/host"
	"github.com/fgrzl/obskit/pkg/transport/wskit"
)

// NewServer builds the authenticated router: bearer tokens are validated
// and flattened into a principal, whose scopes bound which hosts each
// websocket session may reach.
func NewServer(validator jwtkit.Validator, manager host.Manager) *mux.Router {
	router := mux.NewRouter(nil)

	router.UseAuthentication(&mux.AuthenticationOptions{
		Validate: func(tokenStr string) (claims.Principal, error) {
			claims, err := validator.Validate(tokenStr)
			if err != nil {
				return nil, err
			}
			return jwtkit.NewClaimsPrincipal(claims), nil
		},
	})

	router.UseAuthorization(&mux.AuthorizationOptions{})

	router.Healthz().AllowAnonymous()

	wskit.ConfigureWebSocketServer(router, manager)

	return router
}
