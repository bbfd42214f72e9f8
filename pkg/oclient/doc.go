// Package oclient provides the primary entry point for constructing an
// OpenShift/Kubernetes API client that implements the okapi.Client interface.
//
// It layers configuration, HTTP transport, authentication, and
// authorize-endpoint discovery on top of the resource interfaces and types
// defined in the okapi package. Most applications should import oclient to
// build a client, then use the returned okapi.Client to access
// resource-specific clients, for example Pods(), Services(), Builds(), etc.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/okapi/pkg/oclient"
//	  "github.com/fivetwenty-io/okapi/pkg/okapi"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // Minimal: just an API endpoint (no auth).
//	  cli, err := oclient.New(ctx, &okapi.Config{APIEndpoint: "https://openshift.example.com:8443"})
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with an access token you already have:
//	  cli, err = oclient.New(ctx, &okapi.Config{
//	    APIEndpoint: "https://openshift.example.com:8443",
//	    AccessToken: "sha256~...", // bearer token
//	  })
//
//	  // Or with username/password. When credentials are provided and no
//	  // authorize URL is set, oclient discovers the authorize endpoint from
//	  // the server's OAuth metadata document and sets AuthorizeURL
//	  // automatically. Combining a token with credentials makes the client
//	  // present the token first and fall back to a fresh challenge exchange
//	  // if the server rejects it.
//	  cli, err = oclient.New(ctx, &okapi.Config{
//	    APIEndpoint: "https://openshift.example.com:8443",
//	    Username:    "developer",
//	    Password:    "secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Use resource clients via the okapi.Client interface
//	  pods, err := cli.Pods().List(ctx, nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = pods
//	}
//
// # TLS and development mode
//
// For local development, you can set Config.SkipTLSVerify=true. This is gated
// by the environment variable OKAPI_DEV_MODE to avoid accidental insecure
// usage in production environments, and applies to endpoint discovery only.
//
// # Helpers
//
// The package also provides convenience constructors NewWithEndpoint,
// NewWithToken, NewWithPassword, and NewWithFallback that wrap New with the
// appropriate configuration.
package oclient
