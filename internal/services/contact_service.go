package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

const (
	contactIDPrefix = "ctc_"

	contactEventStored        = "contact.stored"
	contactEventHoneypot      = "contact.honeypot"
	contactEventPublishFailed = "contact.publish.failed"
	contactEventNotifyFailed  = "contact.notify.failed"

	maxContactNameLength    = 100
	maxContactPhoneLength   = 40
	maxContactSubjectLength = 200
	maxContactMessageLength = 5000
	maxContactSourceLength  = 200

	followUpTimeout = 10 * time.Second
)

var (
	ErrContactInvalidInput = errors.New("contact: invalid input")
	ErrContactNotFound     = errors.New("contact: not found")
	ErrContactConflict     = errors.New("contact: conflict")
)

// ContactServiceDeps bundles collaborators required to construct a ContactService.
// Events and Notifier are optional.
type ContactServiceDeps struct {
	Contacts    repositories.ContactRepository
	Events      ContactEventPublisher
	Notifier    ContactNotifier
	Clock       func() time.Time
	IDGenerator func() string
	Logger      EventLogger
}

type contactService struct {
	contacts repositories.ContactRepository
	events   ContactEventPublisher
	notifier ContactNotifier
	clock    func() time.Time
	newID    func() string
	logger   EventLogger
}

var _ ContactService = (*contactService)(nil)

func NewContactService(deps ContactServiceDeps) (ContactService, error) {
	if deps.Contacts == nil {
		return nil, errors.New("contact service: contact repository is required")
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = newIDGenerator(contactIDPrefix)
	}
	return &contactService{
		contacts: deps.Contacts,
		events:   deps.Events,
		notifier: deps.Notifier,
		clock:    utcClock(deps.Clock),
		newID:    idGen,
		logger:   loggerOrNoop(deps.Logger),
	}, nil
}

// Submit validates and stores a contact form submission. Filled honeypots get a normal
// looking response without anything being stored. Publishing and notification run after
// the contact is persisted and their failures are only logged.
func (s *contactService) Submit(ctx context.Context, cmd SubmitContactCommand) (Contact, error) {
	contact, err := s.validate(cmd)
	if err != nil {
		return Contact{}, err
	}
	now := s.clock()
	contact.ID = s.newID()
	contact.Status = domain.ContactStatusNew
	contact.CreatedAt = now
	contact.UpdatedAt = now

	if strings.TrimSpace(cmd.Website) != "" {
		s.logger(ctx, contactEventHoneypot, map[string]any{
			"remoteIp": contact.RemoteIP,
			"source":   contact.Source,
		})
		return contact, nil
	}

	if err := s.contacts.Insert(ctx, contact); err != nil {
		return Contact{}, s.mapError(err)
	}
	s.logger(ctx, contactEventStored, map[string]any{
		"contactId": contact.ID,
		"source":    contact.Source,
	})

	followCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
	defer cancel()
	s.publish(followCtx, contact)
	s.notify(followCtx, contact)
	return contact, nil
}

func (s *contactService) publish(ctx context.Context, contact Contact) {
	if s.events == nil {
		return
	}
	_, err := s.events.PublishContactSubmitted(ctx, ContactSubmittedEvent{
		ContactID:   contact.ID,
		Name:        contact.Name,
		Email:       contact.Email,
		Subject:     contact.Subject,
		Source:      contact.Source,
		SubmittedAt: contact.CreatedAt,
	})
	if err != nil {
		s.logger(ctx, contactEventPublishFailed, map[string]any{
			"contactId": contact.ID,
			"error":     err.Error(),
		})
	}
}

func (s *contactService) notify(ctx context.Context, contact Contact) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyContact(ctx, contact); err != nil {
		s.logger(ctx, contactEventNotifyFailed, map[string]any{
			"contactId": contact.ID,
			"error":     err.Error(),
		})
	}
}

func (s *contactService) List(ctx context.Context, filter ContactListFilter) (domain.CursorPage[Contact], error) {
	repoFilter := repositories.ContactFilter{Pagination: filter.Pagination}
	if strings.TrimSpace(filter.Status) != "" {
		status, ok := normalizeContactStatus(filter.Status)
		if !ok {
			return domain.CursorPage[Contact]{}, fmt.Errorf("%w: unknown status %q", ErrContactInvalidInput, filter.Status)
		}
		repoFilter.Status = status
	}
	page, err := s.contacts.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Contact]{}, mapListError(err, ErrContactInvalidInput, ErrContactNotFound, ErrContactConflict)
	}
	return page, nil
}

func (s *contactService) Get(ctx context.Context, contactID string) (Contact, error) {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return Contact{}, fmt.Errorf("%w: contact id is required", ErrContactInvalidInput)
	}
	contact, err := s.contacts.FindByID(ctx, contactID)
	if err != nil {
		return Contact{}, s.mapError(err)
	}
	return contact, nil
}

func (s *contactService) UpdateStatus(ctx context.Context, contactID, status string) (Contact, error) {
	normalized, ok := normalizeContactStatus(status)
	if !ok {
		return Contact{}, fmt.Errorf("%w: status must be new, read or archived", ErrContactInvalidInput)
	}
	contact, err := s.Get(ctx, contactID)
	if err != nil {
		return Contact{}, err
	}
	if contact.Status == normalized {
		return contact, nil
	}
	contact.Status = normalized
	contact.UpdatedAt = s.clock()
	if err := s.contacts.Update(ctx, contact); err != nil {
		return Contact{}, s.mapError(err)
	}
	return contact, nil
}

func (s *contactService) Delete(ctx context.Context, contactID string) error {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return fmt.Errorf("%w: contact id is required", ErrContactInvalidInput)
	}
	return s.mapError(s.contacts.Delete(ctx, contactID))
}

func (s *contactService) validate(cmd SubmitContactCommand) (Contact, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrContactInvalidInput}, args...)...)
	}
	tooLong := func(value string, limit int) bool { return utf8.RuneCountInString(value) > limit }

	name := sanitizeText(cmd.Name)
	if name == "" {
		return Contact{}, invalid("name is required")
	}
	if tooLong(name, maxContactNameLength) {
		return Contact{}, invalid("name must be at most %d characters", maxContactNameLength)
	}
	email, ok := parseEmail(cmd.Email)
	if !ok {
		return Contact{}, invalid("a valid email is required")
	}
	phone := sanitizeText(cmd.Phone)
	if tooLong(phone, maxContactPhoneLength) || !validPhone(phone) {
		return Contact{}, invalid("phone number is invalid")
	}
	subject := sanitizeText(cmd.Subject)
	if tooLong(subject, maxContactSubjectLength) {
		return Contact{}, invalid("subject must be at most %d characters", maxContactSubjectLength)
	}
	message := sanitizeText(cmd.Message)
	if message == "" {
		return Contact{}, invalid("message is required")
	}
	if tooLong(message, maxContactMessageLength) {
		return Contact{}, invalid("message must be at most %d characters", maxContactMessageLength)
	}
	source := sanitizeText(cmd.Source)
	if tooLong(source, maxContactSourceLength) {
		source = string([]rune(source)[:maxContactSourceLength])
	}

	return Contact{
		Name:     name,
		Email:    email,
		Phone:    phone,
		Subject:  subject,
		Message:  message,
		Source:   source,
		RemoteIP: strings.TrimSpace(cmd.RemoteIP),
	}, nil
}

func (s *contactService) mapError(err error) error {
	return mapRepositoryError(err, ErrContactNotFound, ErrContactConflict)
}

func normalizeContactStatus(raw string) (string, bool) {
	switch status := strings.ToLower(strings.TrimSpace(raw)); status {
	case domain.ContactStatusNew, domain.ContactStatusRead, domain.ContactStatusArchived:
		return status, true
	default:
		return "", false
	}
}

// validPhone allows digits with common separators and a leading plus.
func validPhone(phone string) bool {
	digits := 0
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return phone == "" || digits >= 6
}
