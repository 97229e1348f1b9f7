package eye

import (
	"github.com/vango-dev/eyes/internal/errors"
)

// Method is a function stored in a record and invoked through Call with
// the record's wrapper as receiver, so reads inside it are observed.
type Method func(recv Eye, args ...any) any

// IdentityMethod is a function stored in a record that must see the raw
// container as receiver, e.g. because it compares receivers by identity.
type IdentityMethod func(recv any, args ...any) any

// Call invokes the method stored under name. Reading the method is
// observed like any other Get.
func (r *Record) Call(name string, args ...any) (any, error) {
	switch fn := r.Get(name).(type) {
	case Method:
		return fn(r, args...), nil
	case func(Eye, ...any) any:
		return fn(r, args...), nil
	case IdentityMethod:
		return fn(r.raw, args...), nil
	case func(any, ...any) any:
		return fn(r.raw, args...), nil
	case nil:
		return nil, errors.New(errors.CodeNotCallable).WithDetailf("%q is not set", name)
	default:
		return nil, errors.New(errors.CodeNotCallable).WithDetailf("%q holds %T", name, fn)
	}
}
