// Package clock abstracts wall-clock reads and single-shot timers.
//
// Production code uses Real, which delegates to package time. Tests use
// Manual, whose timers only fire when the test advances the clock. Manual
// runs due callbacks synchronously from Advance, in deadline order, so a test
// can step through "45 seconds later" without sleeping.
package clock
