/*
Package autoscaler implements the Autoscaler (C9): a cooldown-gated
ticker loop that compares queue length against replica count and calls
fleet.Controller.ScaleTo when load crosses a threshold.
*/
package autoscaler
