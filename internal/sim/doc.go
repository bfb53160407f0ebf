// Package sim is an in-process execution environment for sensor
// expressions.
//
// Compiled fragments run as goroutine networks, one goroutine per block,
// advanced cycle by cycle:
//
//	env := sim.New()
//	defer env.Close(ctx)
//
//	x, _ := sim.NewSource[float64](env, "joint1", nil)
//	x.Set(0.5)
//	sub, _ := x.Subscribe(ctx, func(v float64) { ... })
//	env.Step(ctx) // evaluate one cycle
//	env.Sync(ctx) // wait for the listener
//
// Runs started with CompileAndRun may publish values with Net::Write
// blocks. Other runs read them with Net::Read until the publishing run is
// stopped.
package sim
