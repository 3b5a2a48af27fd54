package participant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"jornada/pkg/featureflags"
	"jornada/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUnidentifiedSender  = errors.New("sender not identified")
	ErrParticipantDisabled = errors.New("participant is disabled")
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	flags featureflags.FeatureFlag

	participant repository.Repository[Participant]
}

type ServiceParams struct {
	fx.In

	DB    *gorm.DB
	Node  *snowflake.Node
	Flags featureflags.FeatureFlag `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	flags := p.Flags
	if flags == nil {
		flags = featureflags.Static(nil)
	}

	return &Service{
		db:          p.DB,
		node:        p.Node,
		flags:       flags,
		participant: repository.ProvideStore[Participant](p.DB),
	}
}

// FindOrProvision resolves the sender of an inbound message. A sender matching
// no participant is provisioned when a name or phone is known.
func (s *Service) FindOrProvision(ctx context.Context, id Identity) (*Participant, error) {
	zapLog := zap.L().With(
		zap.String("subscriber_id", id.SubscriberID),
		zap.String("phone", id.Phone),
	)

	if !id.Empty() {
		found, err := s.lookup(s.db.WithContext(ctx), id)
		if err != nil {
			zapLog.Error("failed to lookup participant", zap.Error(err))
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}

	if id.Name == "" && id.Phone == "" {
		return nil, ErrUnidentifiedSender
	}

	if !s.flags.Enabled(ctx, featureflags.ParticipantAutoProvision, id.SubscriberID, true) {
		zapLog.Info("auto provisioning disabled, rejecting unknown sender")
		return nil, ErrUnidentifiedSender
	}

	return s.provision(ctx, id)
}

func (s *Service) provision(ctx context.Context, id Identity) (*Participant, error) {
	pid := s.node.Generate().String()

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = DefaultName
	}

	p := &Participant{
		ID:    pid,
		Name:  name,
		Email: PlaceholderEmail(id.Phone, pid),
		Role:  RoleServidor,
	}
	if id.Phone != "" {
		p.Phone = &id.Phone
	}
	if id.SubscriberID != "" {
		p.ManychatSubscriberID = &id.SubscriberID
	}

	inserted, err := s.participant.CreateIfAbsent(ctx, p)
	if err != nil {
		zap.L().Error("failed to provision participant", zap.Error(err))
		return nil, fmt.Errorf("provision participant: %w", err)
	}

	if inserted {
		zap.L().Info("provisioned placeholder participant",
			zap.String("participant_id", p.ID),
			zap.String("subscriber_id", id.SubscriberID),
			zap.String("phone", id.Phone),
		)
		return p, nil
	}

	// a concurrent first contact won the insert
	winner, err := s.lookup(s.db.WithContext(ctx).Unscoped(), id)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		// same phone digits under a different spelling
		winner, err = s.participant.WithTrx(s.db.Unscoped()).FindOne(ctx, &Participant{Email: p.Email})
		if err != nil {
			return nil, err
		}
	}
	if winner == nil {
		return nil, fmt.Errorf("provision participant: conflicting row for email %s", p.Email)
	}
	if winner.DeletedAt.Valid {
		return nil, ErrParticipantDisabled
	}
	return winner, nil
}

func (s *Service) lookup(db *gorm.DB, id Identity) (*Participant, error) {
	q := db.Model(&Participant{})
	switch {
	case id.SubscriberID != "" && id.Phone != "":
		q = q.Where("manychat_subscriber_id = ? OR phone = ?", id.SubscriberID, id.Phone)
	case id.SubscriberID != "":
		q = q.Where("manychat_subscriber_id = ?", id.SubscriberID)
	case id.Phone != "":
		q = q.Where("phone = ?", id.Phone)
	default:
		return nil, nil
	}

	var out Participant
	if err := q.Order("created_at ASC").First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Participant, error) {
	return s.participant.FindOne(ctx, &Participant{ID: id})
}

// PlaceholderEmail builds the unique email handle for participants without a
// real address: "<phone digits>@noemail.local" or "noemail_<id>@noemail.local".
func PlaceholderEmail(phone, id string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)

	if digits != "" {
		return fmt.Sprintf("%s@%s", digits, PlaceholderDomain)
	}
	return fmt.Sprintf("noemail_%s@%s", id, PlaceholderDomain)
}
