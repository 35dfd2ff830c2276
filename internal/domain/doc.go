// Package domain holds the model types and interfaces shared across the
// application. It has no dependencies on other internal packages.
package domain
