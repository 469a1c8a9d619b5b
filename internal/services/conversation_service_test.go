package services

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/domain/user"
	market_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/metrics"
)

var _ = Describe("ConversationService", func() {
	var (
		ctx    context.Context
		f      *fixture
		client user.User
		pro    user.User
		other  user.User
		pro2   user.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = newUser("Carla", user.RoleClient)
		other = newUser("Omar", user.RoleClient)
		pro = newUser("Pablo", user.RoleProfessional)
		pro2 = newUser("Paula", user.RoleProfessional)
		f = newFixture(stubPresence{pro.ID.String(): true}, client, other, pro, pro2)
	})

	Describe("GetOrCreate", func() {
		It("creates an active conversation with sides resolved by capability", func() {
			conv, err := f.conversations.GetOrCreate(ctx, pro.ID, client.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(conv).NotTo(BeNil())
			Expect(conv.ClientID).To(Equal(client.ID))
			Expect(conv.ProfessionalID).To(Equal(pro.ID))
			Expect(conv.IsActive).To(BeTrue())
			Expect(conv.Client.Name).To(Equal("Carla"))
			Expect(conv.Professional.IsOnline).To(BeTrue())
			Expect(conv.Client.IsOnline).To(BeFalse())
		})

		It("is idempotent regardless of which side initiates", func() {
			first, err := f.conversations.GetOrCreate(ctx, client.ID, pro.ID)
			Expect(err).NotTo(HaveOccurred())
			second, err := f.conversations.GetOrCreate(ctx, pro.ID, client.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.ID).To(Equal(first.ID))
			Expect(f.convRepo.count()).To(Equal(1))
		})

		It("counts only conversations that were actually inserted", func() {
			before := testutil.ToFloat64(metrics.ConversationsTotal)

			_, err := f.conversations.GetOrCreate(ctx, client.ID, pro.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.conversations.GetOrCreate(ctx, pro.ID, client.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.conversations.GetOrCreate(ctx, client.ID, pro.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(testutil.ToFloat64(metrics.ConversationsTotal) - before).To(Equal(1.0))
		})

		It("re-activates a closed conversation", func() {
			conv, err := f.conversations.GetOrCreate(ctx, client.ID, pro.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.conversations.SetActive(ctx, conv.ID, client.ID, false)
			Expect(err).NotTo(HaveOccurred())

			again, err := f.conversations.GetOrCreate(ctx, client.ID, pro.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.ID).To(Equal(conv.ID))
			Expect(again.IsActive).To(BeTrue())
		})

		It("returns success without a row for a self conversation", func() {
			conv, err := f.conversations.GetOrCreate(ctx, pro.ID, pro.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(conv).To(BeNil())
			Expect(f.convRepo.count()).To(BeZero())
		})

		DescribeTable("rejects pairings without exactly one professional",
			func(a, b func() user.User) {
				_, err := f.conversations.GetOrCreate(ctx, a().ID, b().ID)
				Expect(err).To(MatchError(market_errors.ErrInvalidParticipants))
				Expect(f.convRepo.count()).To(BeZero())
			},
			Entry("two clients", func() user.User { return client }, func() user.User { return other }),
			Entry("two professionals", func() user.User { return pro }, func() user.User { return pro2 }),
		)

		It("returns not found for an unknown counterpart", func() {
			_, err := f.conversations.GetOrCreate(ctx, client.ID, uuid.New())
			Expect(err).To(MatchError(market_errors.ErrNotFound))
		})
	})

	Describe("List", func() {
		It("orders by last activity and annotates unread counts for the viewer", func() {
			older, err := f.conversations.GetOrCreate(ctx, client.ID, pro.ID)
			Expect(err).NotTo(HaveOccurred())
			newer, err := f.conversations.GetOrCreate(ctx, client.ID, pro2.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = f.messages.Send(ctx, SendMessageInput{ConversationID: newer.ID, SenderID: pro2.ID, Content: "first"})
			Expect(err).NotTo(HaveOccurred())
			_, err = f.messages.Send(ctx, SendMessageInput{ConversationID: older.ID, SenderID: pro.ID, Content: "later"})
			Expect(err).NotTo(HaveOccurred())

			page, err := f.conversations.List(ctx, client.ID, 1, 10, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(BeEquivalentTo(2))
			Expect(page.HasMore).To(BeFalse())
			Expect(page.Conversations[0].ID).To(Equal(older.ID))
			Expect(page.Conversations[0].UnreadCount).To(BeEquivalentTo(1))
			Expect(page.Conversations[0].LastMessage.Content).To(Equal("later"))

			proPage, err := f.conversations.List(ctx, pro.ID, 1, 10, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(proPage.Conversations).To(HaveLen(1))
			Expect(proPage.Conversations[0].UnreadCount).To(BeZero())
		})

		It("computes hasMore from offset and total", func() {
			for _, p := range []user.User{pro, pro2} {
				_, err := f.conversations.GetOrCreate(ctx, client.ID, p.ID)
				Expect(err).NotTo(HaveOccurred())
			}
			page, err := f.conversations.List(ctx, client.ID, 1, 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Conversations).To(HaveLen(1))
			Expect(page.HasMore).To(BeTrue())

			page, err = f.conversations.List(ctx, client.ID, 2, 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.HasMore).To(BeFalse())
		})

		It("filters by active state", func() {
			conv, err := f.conversations.GetOrCreate(ctx, client.ID, pro.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.conversations.GetOrCreate(ctx, client.ID, pro2.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.conversations.SetActive(ctx, conv.ID, pro.ID, false)
			Expect(err).NotTo(HaveOccurred())

			active := true
			page, err := f.conversations.List(ctx, client.ID, 1, 10, &active)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(BeEquivalentTo(1))
			Expect(page.Conversations[0].ProfessionalID).To(Equal(pro2.ID))
		})
	})

	Describe("Get", func() {
		It("returns 404 for unknown ids and 403 for non participants", func() {
			conv, err := f.conversations.GetOrCreate(ctx, client.ID, pro.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = f.conversations.Get(ctx, uuid.New(), client.ID)
			Expect(err).To(MatchError(market_errors.ErrNotFound))

			_, err = f.conversations.Get(ctx, conv.ID, other.ID)
			Expect(err).To(MatchError(market_errors.ErrForbidden))
		})

		It("exposes the last message without a sender summary", func() {
			conv, err := f.conversations.GetOrCreate(ctx, client.ID, pro.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.messages.Send(ctx, SendMessageInput{ConversationID: conv.ID, SenderID: client.ID, Content: "hi", MessageType: message.TypeText})
			Expect(err).NotTo(HaveOccurred())

			view, err := f.conversations.Get(ctx, conv.ID, pro.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.LastMessage).NotTo(BeNil())
			Expect(view.LastMessage.Sender).To(BeNil())
			Expect(view.UnreadCount).To(BeEquivalentTo(1))
		})
	})
})
