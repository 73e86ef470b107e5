package hq

import (
	"errors"
	"fmt"
	"sync"
)

// View is a base navigation state.
type View string

const (
	ViewHome      View = "home"
	ViewTrend     View = "trend"
	ViewLiked     View = "liked"
	ViewSaved     View = "saved"
	ViewUnwatched View = "unwatched"
	ViewHidden    View = "hidden"
	ViewPrivacy   View = "privacy"
	ViewAdmin     View = "admin"
)

// Views lists every navigable view.
var Views = []View{ViewHome, ViewTrend, ViewLiked, ViewSaved, ViewUnwatched, ViewHidden, ViewPrivacy, ViewAdmin}

// ErrAdminRequired is returned when a caller without the admin capability
// tries to reach a privileged view or action.
var ErrAdminRequired = errors.New("admin capability required")

// Capability carries the permissions of the caller driving the router.
// Subject names the token holder, if any.
type Capability struct {
	Admin   bool
	Subject string
}

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	for _, v := range Views {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view: %q", s)
}

// RouterState is a point-in-time copy of the router.
type RouterState struct {
	View   View        `json:"view"`
	Shorts *VideoEntry `json:"shortsOverlay"`
	Long   *VideoEntry `json:"longOverlay"`
	Toast  string      `json:"toast,omitempty"`
}

// Router selects the active view and tracks the modal overlays layered above it.
// Any view is reachable from any other; only ViewAdmin is gated.
type Router struct {
	mu     sync.Mutex
	view   View
	shorts *ShortsOverlay
	long   *LongOverlay
	toasts *Toaster
}

// NewRouter creates a router in ViewHome whose toasts auto-dismiss on clock.
func NewRouter(clock Clock) *Router {
	return &Router{view: ViewHome, toasts: NewToaster(clock, DefaultToastDuration)}
}

// Navigate switches the active view. Overlays are left untouched.
func (r *Router) Navigate(v View, capability Capability) error {
	if _, err := ParseView(string(v)); err != nil {
		return err
	}
	if v == ViewAdmin && !capability.Admin {
		return ErrAdminRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = v
	return nil
}

// View returns the active view.
func (r *Router) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// OpenShorts layers a shorts overlay above the current view, replacing any open one.
func (r *Router) OpenShorts(o *ShortsOverlay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shorts = o
}

// OpenLong layers a long-form overlay above the current view, replacing any open one.
func (r *Router) OpenLong(o *LongOverlay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.long = o
}

// CloseShorts dismisses the shorts overlay. The active view is unchanged.
func (r *Router) CloseShorts() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shorts = nil
}

// CloseLong dismisses the long-form overlay. The active view is unchanged.
func (r *Router) CloseLong() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.long = nil
}

// Shorts returns the open shorts overlay, or nil.
func (r *Router) Shorts() *ShortsOverlay {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shorts
}

// Long returns the open long-form overlay, or nil.
func (r *Router) Long() *LongOverlay {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.long
}

// ShowToast displays msg until it is replaced or auto-dismissed.
func (r *Router) ShowToast(msg string) {
	r.toasts.Show(msg)
}

// State returns a snapshot of the router.
func (r *Router) State() RouterState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := RouterState{View: r.view, Toast: r.toasts.Current()}
	if r.shorts != nil {
		cur := r.shorts.Current()
		st.Shorts = &cur
	}
	if r.long != nil {
		cur := r.long.Current()
		st.Long = &cur
	}
	return st
}
