// Package featprobe detects optional toolchain components at runtime.
//
// Build and test systems use it to decide whether commands or tests that
// depend on an optional component, such as the Sphinx documentation
// generator, should run or be skipped.
//
// # Features
//
// A [Feature] has a stable name, an optional installable package hint, and
// a Check method. Check never fails: when the component cannot be resolved
// it returns a [TestResult] with Present set to false and a Reason.
//
// Two resolution mechanisms are provided:
//   - [PythonModule] imports a module in a Python interpreter process
//     (python3, $FEATPROBE_PYTHON, or [WithInterpreter])
//   - [Executable] looks a program up on PATH
//
// Importing a Python module runs its top-level code.
//
// # Quick Check
//
//	if res := featprobe.Sphinx().Check(); !res.Present {
//	    t.Skipf("sphinx not available: %s", res.Reason)
//	}
//
// # Registry
//
// [Registry] collects features by name, caches results, and supports
// hiding features to simulate their absence:
//
//	r := featprobe.Default()
//	if err := r.Require(featprobe.SphinxName); err != nil {
//	    var fe *featprobe.FeatureError
//	    if errors.As(err, &fe) {
//	        log.Fatalf("%s: %s (%s)", fe.Feature, fe.Reason, fe.Resolution)
//	    }
//	    log.Fatal(err)
//	}
//
// Extra features can be declared in a config file, see [LoadConfig].
package featprobe
