// Package otp generates the one-time passwords issued by this service.
//
// Codes are short-lived random numeric strings delivered out of band; this
// package is only concerned with producing them uniformly.
package otp
