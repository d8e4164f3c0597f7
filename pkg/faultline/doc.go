// Package faultline captures unhandled application errors, enriches them
// with session context, and delivers structured crash reports to the
// faultline backend.
//
// # Core Components
//
// The library is organized around these concepts:
//
//   - Session: the process-wide bundle of user identity, tags, custom data,
//     and breadcrumbs attached to every report until explicitly cleared
//   - CrashReportPayload: the immutable, fully-qualified report built once
//     per fault occurrence
//   - Transport: the direct delivery path to the backend, with an on-device
//     offline store for retry when the network is unavailable
//   - NativeBridge: an optional embedded platform reporter that takes over
//     session propagation and report delivery when present
//
// # Quick Start
//
//	client, err := faultline.Init(
//	    faultline.WithAPIKey("KEY"),
//	    faultline.WithVersion("1.2.0"),
//	    faultline.WithTransport(transport),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.AddTags("checkout")
//	client.RecordBreadcrumb("cart loaded", nil)
//	defer client.Recover(ctx)
//
// # Design Principles
//
//   - Capture never throws back into host code: collaborator failures are
//     logged and the pipeline substitutes a safe default
//   - Reports are frozen at build time: the wire bytes are fixed before the
//     before-send filter runs, so filter-side mutation is unobservable
//   - Session mutators propagate to the native layer on a log-and-continue
//     basis; propagation failure never reaches the caller
package faultline
