package protocol

// Patch op discriminators.
const (
	OpReplace         = "replace"
	OpAppend          = "append"
	OpPrepend         = "prepend"
	OpRemove          = "remove"
	OpSetAttribute    = "set_attribute"
	OpRemoveAttribute = "remove_attribute"
	OpAddClass        = "add_class"
	OpRemoveClass     = "remove_class"
	OpRedirect        = "redirect"
	OpNavigate        = "navigate"
)

// PatchOp is a single DOM update. Only the fields relevant to Op are set.
type PatchOp struct {
	Op     string `json:"op"`
	Target string `json:"target,omitempty"`
	HTML   string `json:"html,omitempty"`
	Name   string `json:"name,omitempty"`
	Value  string `json:"value,omitempty"`
	Class  string `json:"class,omitempty"`
	To     string `json:"to,omitempty"`
}

// ReplaceOp replaces the content of the target element.
func ReplaceOp(target, html string) PatchOp {
	return PatchOp{Op: OpReplace, Target: target, HTML: html}
}

// AppendOp appends markup to the target element.
func AppendOp(target, html string) PatchOp {
	return PatchOp{Op: OpAppend, Target: target, HTML: html}
}

// PrependOp prepends markup to the target element.
func PrependOp(target, html string) PatchOp {
	return PatchOp{Op: OpPrepend, Target: target, HTML: html}
}

// RemoveOp removes the target element.
func RemoveOp(target string) PatchOp {
	return PatchOp{Op: OpRemove, Target: target}
}

// SetAttributeOp sets an attribute on the target element.
func SetAttributeOp(target, name, value string) PatchOp {
	return PatchOp{Op: OpSetAttribute, Target: target, Name: name, Value: value}
}

// RemoveAttributeOp removes an attribute from the target element.
func RemoveAttributeOp(target, name string) PatchOp {
	return PatchOp{Op: OpRemoveAttribute, Target: target, Name: name}
}

// AddClassOp adds a CSS class to the target element.
func AddClassOp(target, class string) PatchOp {
	return PatchOp{Op: OpAddClass, Target: target, Class: class}
}

// RemoveClassOp removes a CSS class from the target element.
func RemoveClassOp(target, class string) PatchOp {
	return PatchOp{Op: OpRemoveClass, Target: target, Class: class}
}

// RedirectOp sends the client to a new URL.
func RedirectOp(to string) PatchOp {
	return PatchOp{Op: OpRedirect, To: to}
}

// NavigateOp triggers client-side navigation without a full page load.
func NavigateOp(to string) PatchOp {
	return PatchOp{Op: OpNavigate, To: to}
}
