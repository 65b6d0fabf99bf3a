// Package provider defines the vendor-agnostic capability contract of
// llmrelay and the failure taxonomy the dispatcher relies on.
//
// Core goals:
//   - Unify chat generation behind a single interface (Provider)
//   - Normalize failures into a small classified set (FailureKind) so the
//     dispatcher can fall through without inspecting vendor error shapes
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockProvider)
//
// Vendors (e.g. OpenAI, Anthropic) implement the Provider interface from
// this package so the registry and dispatcher remain decoupled from vendor
// SDKs. An adapter never lets a raw SDK fault escape Invoke: every failure
// is converted into a *Error carrying its classification.
package provider
