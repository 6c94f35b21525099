// Package analysis runs families of simulations and reduces them.
//
//   - [Sensitivity]: central-difference Jacobian of the final state with
//     respect to the initial state
//   - [Sweep]: one run per parameter value, with the standard metrics
//   - [PowerSpectrum]: frequency content of a sampled trajectory component
//
// Runs are independent and executed on a [dynamo.Ensemble]. Each run builds
// its own field through the job's factory, so scripted fields are safe.
//
//	resp, err := analysis.Sensitivity(ctx, job, x0, 1e-6, 0)
//	if err == nil {
//	    fmt.Println(resp.Amplification())
//	}
package analysis
