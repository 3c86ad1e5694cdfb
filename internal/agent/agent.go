// Package agent serves assisted onboarding for point-of-presence agents:
// PIN login, attributing a subscriber's session to the agent, and the agent's
// own performance view.
package agent
