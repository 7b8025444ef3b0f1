package main

import "github.com/wundergraph/graphql-http-ws-server/cmd"

func main() {
	cmd.Execute()
}
