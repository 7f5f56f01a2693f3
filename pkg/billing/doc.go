// Package billing keeps a user's locally-stored subscription state consistent
// with an external, eventually-consistent billing provider.
//
// Three independent entry points converge on the same per-user billing
// record: checkout initiation, synchronous portal/upgrade actions, and the
// asynchronous webhook stream. They can race, retry, or arrive out of order;
// the package compensates by writing absolute state taken from provider
// snapshots and by delegating atomicity to single-document store updates.
//
// # Architecture
//
//   - Catalog: read-only lookup of sellable plans, loaded from YAML or built
//     statically.
//   - Store: per-user billing record persistence with atomic update methods
//     (Mongo-backed in production, in-memory for tests).
//   - Gateway: the only network boundary to the billing provider
//     (Stripe-backed), including webhook signature verification and
//     translation of provider payloads into the internal Event type.
//   - Service: the reconciliation engine orchestrating the three entry
//     points against catalog, store and gateway.
//
// # Usage
//
//	catalog, err := billing.LoadCatalog("plans.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gateway, err := billing.NewStripeGateway(stripeCfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	svc := billing.NewService(
//		catalog,
//		billing.NewMongoStore(db.Collection("users")),
//		gateway,
//		billingCfg,
//		billing.WithLogger(log),
//	)
//
//	session, err := svc.StartCheckout(ctx, user, "monthly")
//
// Webhook endpoints must hand the exact raw body bytes to HandleEvent,
// since the signature is computed over them:
//
//	payload, _ := io.ReadAll(r.Body)
//	err := svc.HandleEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
//
// Only a signature failure warrants a non-2xx acknowledgment; every other
// handler-level condition is logged and acknowledged because provider
// redelivery cannot fix a missing local entity.
package billing
