package http

// Router matches on exact path and method. Requests reaching it have
// already passed the version and method checks.
type Router struct {
	Routes []Route

	// Middleware wraps every route and the NotFound handler. The first entry
	// is the outermost.
	Middleware []Middleware

	NotFound Handler
}

func NewRouter() Router {
	return Router{
		Routes:   make([]Route, 0),
		NotFound: func(ctx *RequestCtx) { ctx.Response.WithStatus(StatusNotFound) },
	}
}

func (router *Router) GET(path string, handler Handler, middleware ...Middleware) {
	router.Any([]string{MethodGet}, path, handler, middleware...)
}

func (router *Router) Any(methods []string, path string, handler Handler, middleware ...Middleware) {
	for _, middleware := range middleware {
		handler = middleware(handler)
	}

	router.Routes = append(router.Routes, Route{
		Methods: methods,
		Path:    path,
		Handler: handler,
	})
}

func (router *Router) Use(middleware ...Middleware) {
	router.Middleware = append(router.Middleware, middleware...)
}

// Handler compiles the routing table. Routes added afterwards are not seen
// by the returned handler.
func (router *Router) Handler() Handler {
	routes := make([]Route, len(router.Routes))
	copy(routes, router.Routes)

	notFound := router.NotFound
	if notFound == nil {
		notFound = NewRouter().NotFound
	}

	handler := func(ctx *RequestCtx) {
		for _, route := range routes {
			if route.Path != ctx.Request.Path {
				continue
			}

			for _, method := range route.Methods {
				if method == ctx.Request.Method {
					route.Handler(ctx)
					return
				}
			}
		}

		notFound(ctx)
	}

	for i := len(router.Middleware) - 1; i >= 0; i-- {
		handler = router.Middleware[i](handler)
	}

	return handler
}
