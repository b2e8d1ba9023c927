package httpkit

import (
	"net/http"
	"strings"
)

// MountAPI mounts a subrouter under /api/{version}, applies any per-scope middleware,
// then invokes mount to register routes on that scoped router
//
// example:
//
//	httpkit.MountAPI(r, "v0", httpkit.CommonStack(), func(api httpkit.Router) {
//	  universal.MountRoutes(api)
//	})
func MountAPI(r Router, version string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	ver := strings.TrimPrefix(version, "/")
	prefix := "/api/" + ver
	r.Route(prefix, func(api Router) {
		if len(mw) > 0 {
			api.Use(mw...)
		}
		mount(api)
	})
}

// MountAPIV0 is a convenience for MountAPI with version v0
func MountAPIV0(r Router, mw []func(http.Handler) http.Handler, mount func(Router)) {
	MountAPI(r, "v0", mw, mount)
}
