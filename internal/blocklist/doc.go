// Package blocklist holds the per-tenant block-list store and the gate
// that decides whether an inbound event may continue down the pipeline.
// One tenant record exists per bot identity; the store persists all
// tenants as a single JSON document and migrates older schema shapes
// forward the first time a tenant is referenced.
package blocklist
