package services

import "github.com/prometheus/client_golang/prometheus"

const (
	sourceFreeform   = "freeform"
	sourceTournament = "tournament"
)

// Metrics holds the service counters. A nil *Metrics records nothing.
type Metrics struct {
	battles              *prometheus.CounterVec
	tournamentsCreated   prometheus.Counter
	tournamentsCompleted prometheus.Counter
	resets               prometheus.Counter
	archives             prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		battles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "elo_arena",
			Name:      "battles_total",
			Help:      "Committed battles by source.",
		}, []string{"source"}),
		tournamentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elo_arena",
			Name:      "tournaments_created_total",
			Help:      "Tournaments created.",
		}),
		tournamentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elo_arena",
			Name:      "tournaments_completed_total",
			Help:      "Tournaments that crowned a champion.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elo_arena",
			Name:      "tournament_resets_total",
			Help:      "Grand finals won by the losers-bracket champion.",
		}),
		archives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elo_arena",
			Name:      "ranking_archives_total",
			Help:      "Ranking exports uploaded to object storage.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.battles, m.tournamentsCreated, m.tournamentsCompleted, m.resets, m.archives)
	}
	return m
}

func (m *Metrics) battle(source string) {
	if m != nil {
		m.battles.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) tournamentCreated() {
	if m != nil {
		m.tournamentsCreated.Inc()
	}
}

func (m *Metrics) tournamentCompleted() {
	if m != nil {
		m.tournamentsCompleted.Inc()
	}
}

func (m *Metrics) reset() {
	if m != nil {
		m.resets.Inc()
	}
}

func (m *Metrics) archived() {
	if m != nil {
		m.archives.Inc()
	}
}
