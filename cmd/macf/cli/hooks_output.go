package cli

import (
	"fmt"
	"os"

	"github.com/maceff/macf/internal/hookio"
	"github.com/maceff/macf/internal/macferr"
)

// emitOutput validates out against event's Shape P/S contract (spec §4.E)
// and writes it to stdout. A SchemaViolation is caught here rather than
// propagated to the host — spec §7's expanded note: downgrade, log, and
// still continue, since the alternative (an unparseable hook response)
// is strictly worse than a dropped optional field.
func emitOutput(rt *runtime, event hookio.Event, out hookio.Output) error {
	if err := hookio.Validate(event, out); err != nil {
		var violation *macferr.SchemaViolation
		logSchemaViolation(rt, event, err)
		if asSchemaViolation(err, &violation) {
			out = hookio.NewShapeS(true, "")
			return hookio.Encode(os.Stdout, event, out)
		}
		return err
	}
	return hookio.Encode(os.Stdout, event, out)
}

func asSchemaViolation(err error, target **macferr.SchemaViolation) bool {
	v, ok := err.(*macferr.SchemaViolation)
	if ok {
		*target = v
	}
	return ok
}

func logSchemaViolation(rt *runtime, event hookio.Event, err error) {
	fmt.Fprintf(os.Stderr, "macf: schema_violation on %s: %v\n", event, err)
	if rt == nil {
		return
	}
	_ = rt.writer.Append(newEvent(rt, "schema_violation", "", "", map[string]any{
		"hook_event": string(event),
		"detail":     err.Error(),
	}))
}
