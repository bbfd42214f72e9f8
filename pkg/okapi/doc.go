// Package okapi provides types, interfaces, and helpers for working with
// versioned, resource-oriented APIs in the Kubernetes/OpenShift family.
//
// # Overview
//
// The okapi package defines the schema-light object model (Object, List,
// ObjectMeta), the resource registry mapping collection names to endpoints,
// the path resolution rules for current and legacy API versions, and the
// interfaces for resource-oriented clients (ResourceClient plus capability
// extensions such as NodesClient and BuildConfigsClient). A concrete
// implementation of these clients is provided by the oclient package, which
// wires configuration, transport, authentication, and watch sessions. Most
// consumers should import oclient to construct a client and then interact
// with the interfaces exposed here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/okapi/pkg/okapi"
//	  "github.com/fivetwenty-io/okapi/pkg/oclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := oclient.New(ctx, &okapi.Config{
//	    APIEndpoint: "https://openshift.example.com:8443",
//	    Username:    "developer",
//	    Password:    "secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  pods, err := cli.Pods().List(ctx, nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = pods
//	}
//
// # Watching for changes
//
// Watch returns a session holding a consistent snapshot of the collection.
// Register on Events before calling Start so no change between snapshot and
// subscription is missed; the session reconnects across transient stream
// failures and resumes from the last delivered resource version:
//
//	session, err := cli.Pods().Watch(ctx, "", nil)
//	if err != nil { log.Fatal(err) }
//	events := session.Events()
//	if err := session.Start(); err != nil { log.Fatal(err) }
//	defer session.Stop()
//	for event := range events {
//	  switch event.Type {
//	  case okapi.EventCreated, okapi.EventUpdated, okapi.EventDeleted:
//	    log.Println(event.Type, event.Object.Name())
//	  }
//	}
//
// # Queries and pagination
//
// Use QueryParams to express selectors, limits, and resume points. The
// package also provides helpers for iterating or collecting paginated
// collections via the server's continue token:
//
//	it := okapi.NewPaginationIterator(ctx, lister, okapi.NewQueryParams().WithLimit(100))
//	for it.HasNext() {
//	  pod, err := it.Next()
//	  if err != nil { break }
//	  _ = pod
//	}
//
// # Errors
//
// API failures are represented by StatusError, carrying the HTTP status
// code, the server's failure reason, and the raw body. Helpers such as
// IsNotFound, IsUnauthorized, and IsForbidden make it easy to branch on
// common cases. Configuration and authentication failures use dedicated
// types (ParameterError, VersionError, TokenParseError) so they are
// distinguishable from server-side errors.
//
// # Interceptors and caching
//
// The package includes request/response interceptors (logging, auth
// headers, metrics) and a pluggable Cache abstraction with in-memory and
// NATS-backed implementations. The oclient package composes these pieces
// for a sensible default client; applications with advanced needs can also
// use these primitives directly.
package okapi
