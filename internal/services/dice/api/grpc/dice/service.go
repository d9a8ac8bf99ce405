package dice

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coredice "github.com/louisbranch/dicenotation/internal/core/dice"
	"github.com/louisbranch/dicenotation/internal/core/random"
	apperrors "github.com/louisbranch/dicenotation/internal/platform/errors"
	"github.com/louisbranch/dicenotation/internal/platform/grpc/pagination"
	"github.com/louisbranch/dicenotation/internal/platform/requestctx"
	"github.com/louisbranch/dicenotation/internal/services/dice/presets"
	"github.com/louisbranch/dicenotation/internal/services/dice/storage"
)

const (
	defaultListRollsLimit = 10
	maxListRollsLimit     = 50
)

const tracerName = "github.com/louisbranch/dicenotation/internal/services/dice"

// Service implements DiceServer on top of the parser, roller and history
// store.
type Service struct {
	store        storage.RollStore
	presets      *presets.Catalog
	seedFunc     func() (int64, error)
	newSource    func(seed int64) coredice.Source
	idFunc       func() string
	clock        func() time.Time
	tracer       trace.Tracer
	explodeLimit int
}

// Option customizes a Service.
type Option func(*Service)

// WithSeedFunc replaces the server seed generator.
func WithSeedFunc(seedFunc func() (int64, error)) Option {
	return func(s *Service) { s.seedFunc = seedFunc }
}

// WithClock replaces the clock used for roll timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDFunc replaces roll id generation.
func WithIDFunc(idFunc func() string) Option {
	return func(s *Service) { s.idFunc = idFunc }
}

// WithExplodeLimit caps exploding chains; non-positive keeps the default.
func WithExplodeLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.explodeLimit = limit
		}
	}
}

// NewService creates a dice service backed by store and catalog.
func NewService(store storage.RollStore, catalog *presets.Catalog, opts ...Option) *Service {
	s := &Service{
		store:        store,
		presets:      catalog,
		seedFunc:     random.NewSeed,
		newSource:    func(seed int64) coredice.Source { return random.NewSource(seed) },
		idFunc:       uuid.NewString,
		clock:        time.Now,
		tracer:       otel.Tracer(tracerName),
		explodeLimit: coredice.DefaultExplodeLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ DiceServer = (*Service)(nil)

// Roll parses and evaluates a notation or preset and records the result.
func (s *Service) Roll(ctx context.Context, in RollRequest) (RollResponse, error) {
	if s == nil || s.store == nil {
		return RollResponse{}, apperrors.HandleError(errors.New("roll store is not configured"), "")
	}
	ctx, span := s.tracer.Start(ctx, "dice.Roll")
	defer span.End()
	if requestID := requestctx.RequestIDFromContext(ctx); requestID != "" {
		span.SetAttributes(attribute.String("dice.request_id", requestID))
	}

	notation := strings.TrimSpace(in.Notation)
	presetName := strings.TrimSpace(in.Preset)
	label := strings.TrimSpace(in.Label)
	switch {
	case notation != "" && presetName != "":
		return RollResponse{}, s.fail(ctx, span, apperrors.New(apperrors.CodeNotationAndPreset, "notation and preset are mutually exclusive"))
	case presetName != "":
		preset, ok := s.presets.Lookup(presetName)
		if !ok {
			return RollResponse{}, s.fail(ctx, span, apperrors.WithMetadata(
				apperrors.CodePresetNotFound,
				"preset "+presetName+" not found",
				map[string]string{"Name": presetName},
			))
		}
		presetName = preset.Name
		notation = preset.Notation
		if label == "" {
			label = preset.Name
		}
	}
	span.SetAttributes(attribute.String("dice.notation", notation))

	expr, err := coredice.Parse(notation)
	if err != nil {
		return RollResponse{}, s.fail(ctx, span, notationError(notation, err))
	}

	rngReq, rngErr := rngRequest(in.RNG)
	if rngErr != nil {
		return RollResponse{}, s.fail(ctx, span, rngErr)
	}
	seed, seedSource, rollMode, err := random.ResolveSeed(rngReq, s.seedFunc, random.AllowReplay)
	if err != nil {
		if errors.Is(err, random.ErrSeedOutOfRange()) {
			return RollResponse{}, s.fail(ctx, span, apperrors.Wrap(apperrors.CodeSeedOutOfRange, err.Error(), err))
		}
		return RollResponse{}, s.fail(ctx, span, apperrors.Wrap(apperrors.CodeUnknown, "resolve seed: "+err.Error(), err))
	}
	span.SetAttributes(
		attribute.String("dice.seed_source", string(seedSource)),
		attribute.String("dice.roll_mode", string(rollMode)),
	)

	result, err := coredice.NewRoller(s.newSource(seed)).WithExplodeLimit(s.explodeLimit).Roll(expr)
	if err != nil {
		if errors.Is(err, coredice.ErrExplodeLimit) {
			return RollResponse{}, s.fail(ctx, span, apperrors.WrapWithMetadata(
				apperrors.CodeExplodeLimit, err.Error(),
				map[string]string{"Notation": expr.String()}, err,
			))
		}
		return RollResponse{}, s.fail(ctx, span, apperrors.Wrap(apperrors.CodeUnknown, "roll: "+err.Error(), err))
	}
	span.SetAttributes(attribute.Int("dice.total", result.Total))

	record := storage.RollRecord{
		ID:         s.idFunc(),
		Notation:   expr.String(),
		Label:      label,
		Preset:     presetName,
		Total:      result.Total,
		Modifier:   result.Modifier,
		Breakdown:  result.Breakdown,
		Seed:       seed,
		SeedSource: string(seedSource),
		RollMode:   string(rollMode),
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.store.PutRoll(ctx, record); err != nil {
		log.Printf("record roll %s (request %s): %v", record.ID, requestctx.RequestIDFromContext(ctx), err)
		return RollResponse{}, s.fail(ctx, span, apperrors.Wrap(apperrors.CodeUnknown, "record roll: "+err.Error(), err))
	}

	resp := rollRecordToResponse(record)
	resp.Groups = groupResults(result)
	return resp, nil
}

// Validate parses a notation and describes it. Invalid notation is reported
// in the response rather than as an error.
func (s *Service) Validate(ctx context.Context, in ValidateRequest) (ValidateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "dice.Validate")
	defer span.End()

	resp := ValidateResponse{Notation: in.Notation}
	expr, err := coredice.Parse(in.Notation)
	if err != nil {
		var notationErr *coredice.NotationError
		if !errors.As(err, &notationErr) {
			return ValidateResponse{}, s.fail(ctx, span, apperrors.Wrap(apperrors.CodeUnknown, err.Error(), err))
		}
		resp.Error = notationErr.Message
		span.SetAttributes(attribute.Bool("dice.valid", false))
		return resp, nil
	}

	resp.Valid = true
	resp.Canonical = expr.String()
	resp.Modifier = expr.Modifier
	resp.Min, resp.Max = expr.Bounds()
	resp.Groups = make([]GroupSummary, 0, len(expr.Dice))
	for _, group := range expr.Dice {
		resp.Groups = append(resp.Groups, GroupSummary{
			Notation:    group.String(),
			Description: group.Describe(),
		})
	}
	span.SetAttributes(attribute.Bool("dice.valid", true))
	return resp, nil
}

// ListRolls returns recent roll history, newest first.
func (s *Service) ListRolls(ctx context.Context, in ListRollsRequest) (ListRollsResponse, error) {
	if s == nil || s.store == nil {
		return ListRollsResponse{}, apperrors.HandleError(errors.New("roll store is not configured"), "")
	}
	limit := pagination.ClampLimit(in.Limit, pagination.LimitConfig{
		Default: defaultListRollsLimit,
		Max:     maxListRollsLimit,
	})
	records, err := s.store.ListRecentRolls(ctx, limit)
	if err != nil {
		return ListRollsResponse{}, apperrors.HandleError(apperrors.Wrap(apperrors.CodeUnknown, "list rolls: "+err.Error(), err), requestctx.LocaleFromContext(ctx))
	}
	resp := ListRollsResponse{Rolls: make([]RollResponse, 0, len(records))}
	for _, record := range records {
		resp.Rolls = append(resp.Rolls, rollRecordToResponse(record))
	}
	return resp, nil
}

// ListPresets returns the preset catalog sorted by name.
func (s *Service) ListPresets(context.Context, ListPresetsRequest) (ListPresetsResponse, error) {
	list := s.presets.List()
	resp := ListPresetsResponse{Presets: make([]PresetInfo, 0, len(list))}
	for _, preset := range list {
		resp.Presets = append(resp.Presets, PresetInfo{
			Name:        preset.Name,
			Notation:    preset.Notation,
			Description: preset.Description,
		})
	}
	return resp, nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, err *apperrors.Error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(err.Code))
	return apperrors.HandleError(err, requestctx.LocaleFromContext(ctx))
}

func notationError(notation string, err error) *apperrors.Error {
	var notationErr *coredice.NotationError
	if errors.As(err, &notationErr) {
		return apperrors.WithMetadata(apperrors.CodeInvalidNotation, notationErr.Message, map[string]string{"Notation": notation})
	}
	return apperrors.Wrap(apperrors.CodeUnknown, "parse notation: "+err.Error(), err)
}

func rngRequest(in *RNGRequest) (*random.Request, *apperrors.Error) {
	if in == nil {
		return nil, nil
	}
	mode, err := random.ParseRollMode(strings.ToUpper(strings.TrimSpace(in.RollMode)))
	if err != nil {
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidRollMode, err.Error(), map[string]string{"Mode": in.RollMode})
	}
	return &random.Request{Seed: in.Seed, RollMode: mode}, nil
}

func rollRecordToResponse(record storage.RollRecord) RollResponse {
	return RollResponse{
		ID:        record.ID,
		Notation:  record.Notation,
		Label:     record.Label,
		Preset:    record.Preset,
		Total:     record.Total,
		Modifier:  record.Modifier,
		Breakdown: record.Breakdown,
		RNG: RNGResult{
			SeedUsed:   record.Seed,
			SeedSource: record.SeedSource,
			RollMode:   record.RollMode,
		},
		CreatedAt: record.CreatedAt,
	}
}

func groupResults(result coredice.Result) []GroupResult {
	out := make([]GroupResult, 0, len(result.Groups))
	for _, group := range result.Groups {
		summary := GroupResult{
			Notation:     group.Group.String(),
			Description:  group.Group.Describe(),
			Dice:         make([]int, 0, len(group.Dice)),
			Contribution: group.Contribution,
		}
		for _, die := range group.Dice {
			if die.Dropped {
				summary.Dropped = append(summary.Dropped, die.Value)
				continue
			}
			summary.Dice = append(summary.Dice, die.Value)
		}
		out = append(out, summary)
	}
	return out
}
