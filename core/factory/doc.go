// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[solver.Solver]()
//	reg.Register("rule_based", func(conf map[string]any) (solver.Solver, error) {
//	    var c solver.Calibration
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return solver.NewRuleBasedSolver(c), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "rule_based"})
package factory
