package opmode

import (
	"sync"

	"respite/internal/core/model"
)

type override struct {
	name string
	mode model.OperationMode
}

// Stack resolves the effective operation mode from a regular mode and named overrides.
// The most recently set override wins; without overrides the regular mode applies.
type Stack struct {
	mu        sync.Mutex
	regular   model.OperationMode
	overrides []override
}

// NewStack creates a stack with the given regular mode.
func NewStack(regular model.OperationMode) *Stack {
	return &Stack{regular: regular}
}

// Regular returns the user configured mode.
func (stack *Stack) Regular() model.OperationMode {
	stack.mu.Lock()
	defer stack.mu.Unlock()
	return stack.regular
}

// SetRegular replaces the user configured mode and returns the new effective mode.
func (stack *Stack) SetRegular(mode model.OperationMode) model.OperationMode {
	stack.mu.Lock()
	defer stack.mu.Unlock()
	stack.regular = mode
	return stack.effectiveLocked()
}

// Set pushes an override. Setting an existing name moves it to the top.
func (stack *Stack) Set(name string, mode model.OperationMode) model.OperationMode {
	stack.mu.Lock()
	defer stack.mu.Unlock()
	stack.removeLocked(name)
	stack.overrides = append(stack.overrides, override{name: name, mode: mode})
	return stack.effectiveLocked()
}

// Remove drops an override by name. Unknown names are ignored.
func (stack *Stack) Remove(name string) model.OperationMode {
	stack.mu.Lock()
	defer stack.mu.Unlock()
	stack.removeLocked(name)
	return stack.effectiveLocked()
}

// Has reports whether an override with the given name is present.
func (stack *Stack) Has(name string) bool {
	stack.mu.Lock()
	defer stack.mu.Unlock()
	for _, entry := range stack.overrides {
		if entry.name == name {
			return true
		}
	}
	return false
}

// Effective returns the mode currently in force.
func (stack *Stack) Effective() model.OperationMode {
	stack.mu.Lock()
	defer stack.mu.Unlock()
	return stack.effectiveLocked()
}

// Overrides returns the override names from bottom to top.
func (stack *Stack) Overrides() []string {
	stack.mu.Lock()
	defer stack.mu.Unlock()
	names := make([]string, 0, len(stack.overrides))
	for _, entry := range stack.overrides {
		names = append(names, entry.name)
	}
	return names
}

func (stack *Stack) removeLocked(name string) {
	for index, entry := range stack.overrides {
		if entry.name == name {
			stack.overrides = append(stack.overrides[:index], stack.overrides[index+1:]...)
			return
		}
	}
}

func (stack *Stack) effectiveLocked() model.OperationMode {
	if count := len(stack.overrides); count > 0 {
		return stack.overrides[count-1].mode
	}
	return stack.regular
}
