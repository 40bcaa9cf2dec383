package service

import "lobbybot/models"

// RejectReason identifies why an operation was refused
type RejectReason string

const (
	RejectDeafened       RejectReason = "deafened"
	RejectMuted          RejectReason = "muted"
	RejectNoOwnerRole    RejectReason = "no_owner_role"
	RejectBlockedName    RejectReason = "blocked_name"
	RejectAlreadyOwner   RejectReason = "already_owner"
	RejectNotInChannel   RejectReason = "not_in_channel"
	RejectNotAbandoned   RejectReason = "not_abandoned"
	RejectNotOwner       RejectReason = "not_owner"
	RejectTargetAbsent   RejectReason = "target_absent"
	RejectLostRace       RejectReason = "lost_race"
	RejectUnknownChannel RejectReason = "unknown_channel"
	RejectChannelLimit   RejectReason = "channel_limit"
	RejectInvalidLocale  RejectReason = "invalid_locale"
)

// Rejection is a user-facing refusal. It carries a locale key plus format
// arguments so the interaction layer can render it in the requester's
// language. A Rejection never implies any state was mutated.
type Rejection struct {
	Reason    RejectReason
	LocaleKey string
	Args      []any
}

func (r *Rejection) Error() string { return string(r.Reason) }

func reject(reason RejectReason, key string, args ...any) *Rejection {
	return &Rejection{Reason: reason, LocaleKey: key, Args: args}
}

// guard is one composable eligibility check. Guards run in order before an
// engine operation mutates anything; the first non-nil rejection stops
// processing.
type guard func() *Rejection

func runGuards(guards ...guard) *Rejection {
	for _, g := range guards {
		if r := g(); r != nil {
			return r
		}
	}
	return nil
}

// ownershipGuards are the eligibility checks shared by join, claim and
// transfer: server-deafened, server-muted, and role eligibility.
func ownershipGuards(cfg *models.GuildConfig, m Member) []guard {
	return []guard{
		func() *Rejection {
			if cfg.DenyDeafened() && m.Deafened {
				return reject(RejectDeafened, "claim:server_deafened_error")
			}
			return nil
		},
		func() *Rejection {
			if cfg.DenyMuted() && m.Muted {
				return reject(RejectMuted, "claim:server_muted_error")
			}
			return nil
		},
		func() *Rejection {
			if len(cfg.CanOwnRoleIDs) == 0 {
				return nil
			}
			for _, role := range m.RoleIDs {
				for _, allowed := range cfg.CanOwnRoleIDs {
					if role == allowed {
						return nil
					}
				}
			}
			return reject(RejectNoOwnerRole, "claim:no_owner_role_error")
		},
	}
}

func presentGuard(occupants []int64, userID int64, reason RejectReason, key string) guard {
	return func() *Rejection {
		for _, id := range occupants {
			if id == userID {
				return nil
			}
		}
		return reject(reason, key)
	}
}
