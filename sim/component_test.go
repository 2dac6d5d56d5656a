package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type itemCollector struct {
	items []any
}

func (h *itemCollector) Func(ctx HookCtx) {
	h.items = append(h.items, ctx.Item)
}

var _ = Describe("ComponentBase", func() {
	var (
		component *ComponentBase
	)

	BeforeEach(func() {
		component = NewComponentBase("Fabric.RouterA")
	})

	It("should set and get name", func() {
		Expect(component.Name()).To(Equal("Fabric.RouterA"))
	})

	It("should refuse names that are not tokenized", func() {
		Expect(func() { NewComponentBase("router a") }).To(Panic())
	})

	It("should invoke hooks in registration order", func() {
		first := &itemCollector{}
		second := &itemCollector{}
		component.AcceptHook(first)
		component.AcceptHook(second)

		component.InvokeHook(HookCtx{Domain: component, Item: 1})
		component.InvokeHook(HookCtx{Domain: component, Item: 2})

		Expect(component.NumHooks()).To(Equal(2))
		Expect(first.items).To(Equal([]any{1, 2}))
		Expect(second.items).To(Equal([]any{1, 2}))
	})

	It("should panic on a duplicated hook", func() {
		hook := &itemCollector{}
		component.AcceptHook(hook)

		Expect(func() { component.AcceptHook(hook) }).To(Panic())
	})
})
