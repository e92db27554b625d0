// Package triage provides the business boundary for Sehat's patient triage
// pipeline. It defines the Service (validation, severity assessment, facility
// routing, async worker notification), the DecisionStore interface
// (persistence), and the Prometheus metrics for the subsystem.
package triage
