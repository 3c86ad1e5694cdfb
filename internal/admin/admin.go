// Package admin serves the regulator view of onboarding: dashboard counts,
// session listings, audit trails and on-demand chain verification.
//
// All routes require a bearer token carrying the regulator role.
package admin
