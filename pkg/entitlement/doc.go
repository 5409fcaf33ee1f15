// Package entitlement implements the client-side subscription state machine
// for EMTChat: the static tier table, usage/warning-level derivation, and the
// billing actions (checkout, portal, cancel, resume) that delegate to the
// backend billing API and hand the browser off to the payment provider's
// hosted pages.
//
// # Architecture
//
//   - Tier / TierLimits: closed, ordered tier set with a static entitlement
//     table. The table is never mutated at runtime.
//   - Usage: consumption snapshot with derived percentages and a warning
//     level (none/moderate/high/critical at 75/90/100).
//   - Manager: per-session owner of the State aggregate, with the seven
//     operations consuming the backend REST API through BackendClient.
//   - Client: the HTTP implementation of BackendClient.
//
// # Usage
//
//	client, err := entitlement.NewClient(entitlement.Config{
//		BaseURL: "https://api.emtchat.io",
//		Token:   sessionToken,
//	})
//	if err != nil {
//		return err
//	}
//
//	mgr := entitlement.NewManager(ctx, client,
//		entitlement.RedirectFunc(browser.Navigate),
//		entitlement.WithCheckoutURLs(
//			"https://app.emtchat.io/subscription?checkout=success",
//			"https://app.emtchat.io/subscription?checkout=cancelled",
//		),
//		entitlement.WithPortalReturnURL("https://app.emtchat.io/subscription"),
//	)
//
//	state := mgr.State()
//	if mgr.UsageWarningLevel() == entitlement.WarningCritical {
//		// emphasize the upgrade CTA
//	}
//	if next, ok := state.Tier.Next(); ok {
//		_ = mgr.CreateCheckout(ctx, next, entitlement.IntervalMonthly)
//	}
//
// # Failure semantics
//
// Every network-calling method records failures in State.Err and leaves the
// last known good fields intact, so UI reading the state keeps rendering the
// previous tier, limits and usage during outages. No retries are built in;
// callers decide whether to invoke a method again. Overlapping RefreshStatus
// calls are sequenced by a generation counter so only the newest refresh can
// commit its result.
package entitlement
