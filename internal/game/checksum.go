package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
)

// Checksum returns a SHA-256 digest of the complete game state, including
// private hands and the order of the deck. Two games with equal checksums are
// indistinguishable to every operation.
func (g *Game) Checksum() string {
	sum := sha256.Sum256(g.canonical())
	return hex.EncodeToString(sum[:])
}

// canonical renders the state in a fixed order. Container order is kept
// where it matters (deck, hands, vaults, seats); submissions are sorted.
func (g *Game) canonical() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%s|%d|%d|%s|%d|%t\n",
		g.id,
		g.phase,
		g.turn.Current(),
		g.turn.Round(),
		g.winner,
		g.opts.WinThreshold,
		g.drew,
	)
	fmt.Fprintf(&buf, "DECK:%s\n", cardIDs(g.deck))
	fmt.Fprintf(&buf, "DISCARD:%s\n", cardIDs(g.discard))

	for _, p := range g.players.Players() {
		category := ""
		if c, ok := p.DeclaredCategory(); ok {
			category = string(c)
		}
		fmt.Fprintf(&buf, "PLAYER:%s|%s|%s|%t\n", p.ID, p.Name, category, g.ready.Has(p.ID))
		fmt.Fprintf(&buf, "  HAND:%s\n", cardIDs(p.Hand))
		fmt.Fprintf(&buf, "  VAULT:%s\n", cardIDs(p.Vault))
	}

	switch sub := g.sub.(type) {
	case *MassDiscard:
		ids := sub.submissions.Submitted()
		sort.Strings(ids)
		for _, id := range ids {
			submitted, _ := sub.submissions.Value(id)
			fmt.Fprintf(&buf, "MASS_DISCARD:%s|%s\n", id, cardIDs(submitted))
		}
	case *SimultaneousReveal:
		ids := sub.reveals.Submitted()
		sort.Strings(ids)
		for _, id := range ids {
			c, _ := sub.reveals.Value(id)
			revealed := "pass"
			if c != nil {
				revealed = strconv.Itoa(c.ID)
			}
			fmt.Fprintf(&buf, "REVEAL:%s|%s\n", id, revealed)
		}
	}
	return buf.Bytes()
}

func cardIDs(cs []cards.Card) string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = strconv.Itoa(c.ID)
	}
	return strings.Join(ids, ",")
}
