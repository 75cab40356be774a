// Package hooking lets observers attach to updaters and annealers without the
// hot loops knowing who is listening.
package hooking

// HookPos marks a point in a run where observers are called, such as the
// end of a sweep or a move decision.
type HookPos struct {
	Name string
}

// HookCtx is what an observer receives. Domain is the object that fired, Pos
// the point it fired from, and Item the report itself (a move, a sweep
// record).
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
}

// Hookable is implemented by updaters and annealers.
//
// Hooks are registered before the run starts. Annealers fire the same hooks
// from every replica goroutine, so shared hooks must synchronize.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
	InvokeHook(ctx HookCtx)
}

// Hook observes a Hookable.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc turns a function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase keeps the observers of an updater or annealer. Embed it to
// get the Hookable methods.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase returns a HookableBase with no hooks.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// NumHooks tells how many observers are attached.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// Hooks lists the observers in the order they were attached.
func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// AcceptHook attaches an observer. Attaching the same observer twice panics;
// HookFunc values cannot be compared and are always accepted.
func (h *HookableBase) AcceptHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); !isFunc {
		for _, attached := range h.hooks {
			if attached == hook {
				panic("hook attached twice")
			}
		}
	}

	h.hooks = append(h.hooks, hook)
}

// InvokeHook reports ctx to every observer, in attach order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
