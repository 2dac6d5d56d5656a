package link

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Wire", func() {
	var (
		mockCtrl *gomock.Controller
		tx       *MockTransmitter
		rx       *MockAcceptor
		wire     *Wire
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		tx = NewMockTransmitter(mockCtrl)
		rx = NewMockAcceptor(mockCtrl)

		tx.EXPECT().ConnectDownstream(gomock.Any()).
			Do(func(r Receiver) {
				Expect(r).To(BeAssignableToTypeOf(&Wire{}))
			})
		rx.EXPECT().ConnectUpstream(gomock.Any())

		wire = Connect("Wire", tx, rx)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should have a name", func() {
		Expect(wire.Name()).To(Equal("Wire"))
	})

	It("should forward the sender signals", func() {
		tx.EXPECT().Put().Return(true)
		tx.EXPECT().Data().Return(byte(0x42))

		Expect(wire.Put()).To(BeTrue())
		Expect(wire.Data()).To(Equal(byte(0x42)))
	})

	It("should forward the receiver signal", func() {
		rx.EXPECT().Free().Return(false)

		Expect(wire.Free()).To(BeFalse())
	})

	It("should transfer only when put and free", func() {
		tx.EXPECT().Put().Return(true).Times(2)
		rx.EXPECT().Free().Return(true)
		rx.EXPECT().Free().Return(false)

		Expect(wire.Transferring()).To(BeTrue())
		Expect(wire.Transferring()).To(BeFalse())
	})

	It("should not transfer if nothing is put", func() {
		tx.EXPECT().Put().Return(false)

		Expect(wire.Transferring()).To(BeFalse())
	})

	It("should refuse missing ends", func() {
		Expect(func() { Connect("Wire", nil, rx) }).To(Panic())
	})
})

var _ = Describe("Default ends", func() {
	It("should be idle and blocked", func() {
		Expect(Idle{}.Put()).To(BeFalse())
		Expect(Idle{}.Data()).To(Equal(byte(0)))
		Expect(Blocked{}.Free()).To(BeFalse())
	})
})
