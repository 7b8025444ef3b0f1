// Command graphql-server serves GraphQL queries and mutations over HTTP and subscriptions over the
// graphql-ws and graphql-transport-ws websocket subprotocols on a single port and path.
//
// The server is assembled by package server, which can also be embedded into other programs:
//
//	s, err := server.New(server.Config{
//		Source:    server.OwnedServer{Port: 4000},
//		TypeDefs:  typeDefs,
//		Resolvers: resolvers,
//	})
//	if err != nil {
//		return err
//	}
//	if err = s.Start(ctx); err != nil {
//		return err
//	}
//	defer s.Shutdown(context.Background())
//
// Upgrade requests on the subscriptions path are routed by their Sec-WebSocket-Protocol header.
// Requests without the header are served with graphql-ws, unknown subprotocols are rejected.
package main
