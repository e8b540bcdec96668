// Package sdk is a client for an ad decision engine and its user profile
// service.
//
// A Client holds one Config (default network, site and host) and one
// IdentityStore. Decide assembles a request for one or more placements,
// posts it, and returns exactly one Outcome:
//
//	client, err := sdk.New(sdk.Config{NetworkID: 9999, SiteID: 1})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	p := sdk.MustPlacement("div1", []int{5})
//	switch out := client.Decide(ctx, []sdk.Placement{p}, nil).(type) {
//	case sdk.Success:
//	    d, _ := out.Response.First("div1")
//	    client.RecordDecisionImpression(ctx, d)
//	case sdk.RequestRejected:
//	    log.Printf("status %d: %s", out.StatusCode, out.Body)
//	default:
//	    log.Print(out.Err())
//	}
//
// A user key returned by the engine is saved to the IdentityStore and sent
// with later decisions and profile calls that do not name a user
// explicitly. Profile calls (AddInterest, OptOut, Retarget, PostProperties)
// report (ok, err) and share one calling convention, including for
// configuration errors.
//
// The *Async and *Func variants deliver their result through the Executor
// chosen when the Client was built, never on the goroutine that finished the
// HTTP exchange.
package sdk
