package handlers

import "github.com/nuulab/ifcjobs/pkg/worker"

// RegisterAll binds every known handler_name into r. A worker process
// registers the full set regardless of which single queue its Runtime is
// bound to (spec C4): the registry is a fixed, queue-agnostic table, and
// QUEUE_NAME only decides which list the runtime blocks on.
func RegisterAll(r *worker.Registry, d Deps, recipes *RecipeRegistry) {
	RegisterConvert(r, d)
	RegisterCSV(r, d)
	RegisterClash(r, d)
	RegisterTester(r, d)
	RegisterDiff(r, d)
	RegisterQto(r, d)
	RegisterJSON(r, d)
	RegisterPatch(r, d, recipes)
}
