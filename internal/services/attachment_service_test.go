package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/domain/user"
	"marketplace-chat/internal/storage"
	market_errors "marketplace-chat/pkg/errors"
)

type fakePresigner struct {
	keys []string
	err  error
}

func (p *fakePresigner) PresignPut(_ context.Context, key, contentType string, size int64) (storage.PresignedUpload, error) {
	if p.err != nil {
		return storage.PresignedUpload{}, p.err
	}
	p.keys = append(p.keys, key)
	return storage.PresignedUpload{
		URL:       "https://bucket.local/" + key + "?sig=1",
		Key:       key,
		Headers:   map[string]string{"Content-Type": contentType},
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}, nil
}

var _ = Describe("AttachmentService", func() {
	var (
		ctx       context.Context
		f         *fixture
		client    user.User
		pro       user.User
		presigner *fakePresigner
		svc       *AttachmentService
		convID    uuid.UUID
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = newUser("Carla", user.RoleClient)
		pro = newUser("Pablo", user.RoleProfessional)
		f = newFixture(nil, client, pro)
		presigner = &fakePresigner{}
		svc = NewAttachmentService(f.conversations, presigner, 1<<20)

		conv, err := f.conversations.GetOrCreate(ctx, client.ID, pro.ID)
		Expect(err).NotTo(HaveOccurred())
		convID = conv.ID
	})

	It("reports unavailable without storage", func() {
		disabled := NewAttachmentService(f.conversations, nil, 1<<20)
		Expect(disabled.Enabled()).To(BeFalse())
		_, err := disabled.Presign(ctx, PresignAttachmentInput{ConversationID: convID, CallerID: client.ID, FileName: "a.png", MimeType: "image/png", Size: 10})
		Expect(err).To(MatchError(market_errors.ErrServiceUnavailable))
	})

	It("keys uploads under the conversation and infers the message type", func() {
		img, err := svc.Presign(ctx, PresignAttachmentInput{ConversationID: convID, CallerID: client.ID, FileName: "kitchen.png", MimeType: "image/png", Size: 2048})
		Expect(err).NotTo(HaveOccurred())
		Expect(img.MessageType).To(Equal(message.TypeImage))
		Expect(img.Key).To(HavePrefix("attachments/" + convID.String() + "/"))
		Expect(strings.HasSuffix(img.Key, ".png")).To(BeTrue())

		doc, err := svc.Presign(ctx, PresignAttachmentInput{ConversationID: convID, CallerID: pro.ID, FileName: "quote.pdf", MimeType: "application/pdf", Size: 2048})
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.MessageType).To(Equal(message.TypeFile))
	})

	It("checks membership before signing", func() {
		_, err := svc.Presign(ctx, PresignAttachmentInput{ConversationID: convID, CallerID: uuid.New(), FileName: "a.png", MimeType: "image/png", Size: 10})
		Expect(err).To(MatchError(market_errors.ErrForbidden))
		Expect(presigner.keys).To(BeEmpty())
	})

	DescribeTable("validates the upload",
		func(input PresignAttachmentInput, expected error) {
			input.ConversationID = convID
			input.CallerID = client.ID
			_, err := svc.Presign(ctx, input)
			Expect(err).To(MatchError(expected))
			Expect(presigner.keys).To(BeEmpty())
		},
		Entry("no name", PresignAttachmentInput{MimeType: "image/png", Size: 10}, market_errors.ErrValidation),
		Entry("no mime", PresignAttachmentInput{FileName: "a.png", Size: 10}, market_errors.ErrValidation),
		Entry("zero size", PresignAttachmentInput{FileName: "a.png", MimeType: "image/png"}, market_errors.ErrValidation),
		Entry("too large", PresignAttachmentInput{FileName: "a.png", MimeType: "image/png", Size: 2 << 20}, market_errors.ErrTooLarge),
	)

	It("surfaces storage failures", func() {
		presigner.err = errors.New("s3 down")
		_, err := svc.Presign(ctx, PresignAttachmentInput{ConversationID: convID, CallerID: client.ID, FileName: "a.png", MimeType: "image/png", Size: 10})
		Expect(err).To(MatchError("s3 down"))
	})
})
