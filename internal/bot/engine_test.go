package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/animegate/internal/config"
	ledgerdomain "github.com/smallbiznis/animegate/internal/ledger/domain"
	stepdomain "github.com/smallbiznis/animegate/internal/step/domain"
	userdomain "github.com/smallbiznis/animegate/internal/user/domain"
	"github.com/stretchr/testify/require"
)

func TestStartRegistersAndShowsMenu(t *testing.T) {
	h := newHarness(t, testBotConfig())

	h.text(42, "/start")

	user, err := h.users.Get(h.ctx, 42)
	require.NoError(t, err)
	require.Equal(t, userdomain.TierStandard, user.Tier)

	last := h.transport.Last(t)
	require.Equal(t, int64(42), last.ChatID)
	require.Contains(t, last.Msg.Text, "Aziz")
	require.NotNil(t, last.Msg.Reply)
	for _, row := range last.Msg.Reply.Rows {
		require.NotContains(t, row, h.tr(labelPanel))
	}

	h.text(testAdminID, "/start")
	admin := h.transport.Last(t)
	require.Contains(t, admin.Msg.Reply.Rows[len(admin.Msg.Reply.Rows)-1], h.tr(labelPanel))
}

func TestBackClearsStep(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(42)
	require.NoError(t, h.steps.Set(h.ctx, 42, stepdomain.Start(stepdomain.FlowSearchByName)))

	h.label(42, labelBack)

	st, err := h.steps.Get(h.ctx, 42)
	require.NoError(t, err)
	require.True(t, st.IsIdle())
}

func TestStepTakesPrecedenceOverLabels(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(42)
	require.NoError(t, h.steps.Set(h.ctx, 42, stepdomain.Start(stepdomain.FlowSearchByCode)))

	h.label(42, labelVIP)

	require.Equal(t, h.tr(textBadNumber), h.transport.Last(t).Msg.Text)
	st, err := h.steps.Get(h.ctx, 42)
	require.NoError(t, err)
	require.Equal(t, stepdomain.FlowSearchByCode, st.Flow)
}

func TestTitleCodeCountsViews(t *testing.T) {
	h := newHarness(t, testBotConfig())
	title := h.seedTitle("Naruto", 3)
	h.start(42)

	for i := 0; i < 3; i++ {
		h.text(42, itoa(title.ID))
	}

	require.Equal(t, int64(3), h.views(title.ID))
	last := h.transport.Last(t)
	require.NotNil(t, last.Media)
	require.Equal(t, MediaPhoto, last.Media.Kind)
	require.Equal(t, "cover-Naruto", last.Media.FileID)
	require.Equal(t, downloadToken(title.ID, 1, 1), last.Media.Inline.Rows[0][0].Data)
}

func TestUnknownTitleCodeSendsNoticeOnly(t *testing.T) {
	h := newHarness(t, testBotConfig())
	title := h.seedTitle("Naruto", 1)
	h.start(42)

	h.text(42, "9999")

	require.Equal(t, h.tr(textTitleNotFound), h.transport.Last(t).Msg.Text)
	require.Equal(t, int64(0), h.views(title.ID))
}

func TestDownloadSendsEpisodeWithWindow(t *testing.T) {
	h := newHarness(t, testBotConfig())
	title := h.seedTitle("Bleach", 60)
	h.start(42)

	h.press(42, 500, downloadToken(title.ID, 47, 47))

	last := h.transport.Last(t)
	require.NotNil(t, last.Media)
	require.Equal(t, MediaVideo, last.Media.Kind)
	require.Equal(t, "ep-47", last.Media.FileID)

	buttons := last.Media.Inline.Buttons()
	// 25 episodes plus prev, close and next
	require.Len(t, buttons, 28)
	require.Equal(t, "26", buttons[0].Text)
	require.Equal(t, downloadToken(title.ID, 26, 47), buttons[0].Data)
	require.Equal(t, string(ActionNoop), buttons[21].Data)
	require.Equal(t, "[📀] - 47", buttons[21].Text)
	for _, row := range last.Media.Inline.Rows[:len(last.Media.Inline.Rows)-1] {
		require.LessOrEqual(t, len(row), episodesPerRow)
	}

	nav := last.Media.Inline.Rows[len(last.Media.Inline.Rows)-1]
	require.Equal(t, pageToken(title.ID, 26, 47, "prev"), nav[0].Data)
	require.Equal(t, string(ActionClose), nav[1].Data)
	require.Equal(t, pageToken(title.ID, 26, 47, "next"), nav[2].Data)

	answer := h.transport.LastAnswer(t)
	require.Equal(t, "", answer.Text)
}

func TestDownloadUnknownEpisode(t *testing.T) {
	h := newHarness(t, testBotConfig())
	title := h.seedTitle("Bleach", 5)
	h.start(42)

	h.press(42, 500, downloadToken(title.ID, 6, 6))

	require.Equal(t, h.tr(textEpisodeNotFound), h.transport.Last(t).Msg.Text)
}

func TestPageShiftsWindowInPlace(t *testing.T) {
	h := newHarness(t, testBotConfig())
	title := h.seedTitle("Bleach", 60)
	h.start(42)

	h.press(42, 700, pageToken(title.ID, 26, 47, "next"))

	edit := h.transport.LastEdit(t)
	require.Equal(t, 700, edit.MessageID)
	require.NotNil(t, edit.Keyboard)
	buttons := edit.Keyboard.Buttons()
	require.Equal(t, "51", buttons[0].Text)
	require.Equal(t, downloadToken(title.ID, 51, 47), buttons[0].Data)
	// episodes 51..60 then navigation
	require.Len(t, buttons, 13)
	nav := edit.Keyboard.Rows[len(edit.Keyboard.Rows)-1]
	require.Equal(t, pageToken(title.ID, 51, 47, "next"), nav[2].Data)

	h.press(42, 700, pageToken(title.ID, 51, 47, "next"))
	answer := h.transport.LastAnswer(t)
	require.True(t, answer.Alert)
	require.Equal(t, h.tr(textNoNextWindow), answer.Text)

	h.press(42, 700, pageToken(title.ID, 1, 47, "prev"))
	answer = h.transport.LastAnswer(t)
	require.True(t, answer.Alert)
	require.Equal(t, h.tr(textNoPrevWindow), answer.Text)
	require.Len(t, h.transport.Edits(), 1)
}

func TestAdminSeesDeleteRow(t *testing.T) {
	h := newHarness(t, testBotConfig())
	title := h.seedTitle("Bleach", 5)
	h.start(testAdminID)

	h.press(testAdminID, 500, downloadToken(title.ID, 3, 3))

	kb := h.transport.Last(t).Media.Inline
	deleteRow := kb.Rows[len(kb.Rows)-2]
	require.Equal(t, deleteToken(title.ID, 3, 3), deleteRow[0].Data)

	h.press(testAdminID, 900, deleteToken(title.ID, 3, 3))
	require.Contains(t, h.transport.Deleted(), 900)
	require.True(t, h.transport.LastAnswer(t).Alert)

	h.press(testAdminID, 901, downloadToken(title.ID, 3, 3))
	require.Equal(t, h.tr(textEpisodeNotFound), h.transport.Last(t).Msg.Text)
}

func TestNonAdminCannotDeleteEpisode(t *testing.T) {
	h := newHarness(t, testBotConfig())
	title := h.seedTitle("Bleach", 5)
	h.start(42)

	h.press(42, 900, deleteToken(title.ID, 3, 3))

	answer := h.transport.LastAnswer(t)
	require.True(t, answer.Alert)
	require.Equal(t, h.tr(textNoPermission), answer.Text)
	require.Empty(t, h.transport.Deleted())
}

func TestMalformedTokenIsAnsweredAndIgnored(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(42)
	before := len(h.transport.Sent())

	h.press(42, 10, "dl=1=2")
	h.press(42, 10, "explode=1")
	h.press(42, 10, "dl=x=1=1")

	require.Len(t, h.transport.Sent(), before)
	require.Len(t, h.transport.Answers(), 3)
}

func TestGateBlocksThenRecheckResumes(t *testing.T) {
	cfg := testBotConfig()
	cfg.Channels = []config.Channel{{ID: -100, Link: "https://t.me/anime", Mode: config.ChannelModeLink}}
	cfg.Promo = config.PromoLinks{Instagram: "https://instagram.com/anime", Youtube: "https://youtube.com/@anime"}
	h := newHarness(t, cfg)
	title := h.seedTitle("Naruto", 2)
	h.start(50)

	h.press(50, 300, titleToken(title.ID))

	prompt := h.transport.Last(t)
	require.Equal(t, h.tr(textGatePrompt), prompt.Msg.Text)
	buttons := prompt.Msg.Inline.Buttons()
	require.Len(t, buttons, 3)
	require.Equal(t, "Kanal 1", buttons[0].Text)
	require.Equal(t, "https://t.me/anime", buttons[0].URL)
	require.Equal(t, "https://instagram.com/anime", buttons[1].URL)
	require.Equal(t, recheckToken(title.ID), buttons[2].Data)
	require.Equal(t, int64(0), h.views(title.ID))

	// still not a member
	h.press(50, prompt.MessageID, recheckToken(title.ID))
	h.engine.Wait()
	require.Contains(t, h.transport.Deleted(), prompt.MessageID)
	sent := h.transport.Sent()
	require.Equal(t, h.tr(textGateNotDetected), sent[len(sent)-2].Msg.Text)
	second := h.transport.Last(t)
	require.Equal(t, h.tr(textGatePrompt), second.Msg.Text)

	h.transport.setMember(-100, 50)
	h.press(50, second.MessageID, recheckToken(title.ID))
	h.engine.Wait()

	require.Contains(t, h.transport.Deleted(), second.MessageID)
	require.NotNil(t, h.transport.Last(t).Media)
	require.Equal(t, int64(1), h.views(title.ID))
}

func TestRecheckPlaysProgressFrames(t *testing.T) {
	cfg := testBotConfig()
	cfg.Recheck.FrameInterval = time.Millisecond
	h := newHarness(t, cfg)
	var slept int
	h.engine.sleep = func(ctx context.Context, d time.Duration) error {
		slept++
		return nil
	}
	h.start(50)

	h.press(50, 300, recheckToken(0))
	h.engine.Wait()

	edits := h.transport.Edits()
	require.Len(t, edits, 7)
	require.Equal(t, 7, slept)
	require.True(t, strings.HasPrefix(edits[0].Msg.Text, "⏳"))
	require.Contains(t, edits[6].Msg.Text, "90%")
	require.Contains(t, h.transport.Last(t).Msg.Text, "Aziz")
}

func TestVIPPurchaseFlow(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(60)
	h.credit(60, 30000)

	h.label(60, labelVIP)
	offer := h.transport.Last(t)
	require.Equal(t, h.tr(textVIPOffer), offer.Msg.Text)
	require.Equal(t, EncodeToken(ActionBuy, "30"), offer.Msg.Inline.Buttons()[0].Data)

	h.press(60, offer.MessageID, EncodeToken(ActionBuy, "30"))

	edit := h.transport.LastEdit(t)
	require.Equal(t, offer.MessageID, edit.MessageID)
	require.Equal(t, h.tr(textVIPActivated), edit.Msg.Text)

	balance, err := h.ledger.Balance(h.ctx, 60)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.Amount)
	user, err := h.users.Get(h.ctx, 60)
	require.NoError(t, err)
	require.True(t, user.IsVIP())

	notice := h.trf(textVIPAdminNotice, int64(60), 30, int64(25000), "so'm")
	require.Eventually(t, func() bool {
		for _, m := range h.transport.SentTo(testAdminID) {
			if m.Msg.Text == notice {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	h.press(60, offer.MessageID, EncodeToken(ActionBuy, "30"))
	answer := h.transport.LastAnswer(t)
	require.True(t, answer.Alert)
	require.Equal(t, h.tr(textVIPInsufficient), answer.Text)
	balance, err = h.ledger.Balance(h.ctx, 60)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.Amount)

	h.credit(60, 20000)
	h.press(60, offer.MessageID, EncodeToken(ActionBuy, "30"))
	require.Equal(t, h.tr(textVIPExtended), h.transport.LastEdit(t).Msg.Text)

	h.label(60, labelVIP)
	require.Contains(t, h.transport.Last(t).Msg.Text, "60")
}

func TestBuyIgnoresUnofferedPlan(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(60)
	h.credit(60, 100000)

	h.press(60, 10, EncodeToken(ActionBuy, "7"))

	balance, err := h.ledger.Balance(h.ctx, 60)
	require.NoError(t, err)
	require.Equal(t, int64(100000), balance.Amount)
	require.Empty(t, h.transport.Edits())
}

func TestBalanceLabel(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(60)
	h.credit(60, 1200)

	h.label(60, labelBalance)

	require.Equal(t, h.trf(textBalance, int64(60), int64(1200), "so'm"), h.transport.Last(t).Msg.Text)
}

func TestAdminLabelsRequirePermission(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(42)

	h.label(42, labelAddTitle)

	require.Equal(t, h.tr(textNoPermission), h.transport.Last(t).Msg.Text)
	st, err := h.steps.Get(h.ctx, 42)
	require.NoError(t, err)
	require.True(t, st.IsIdle())
}

func TestAddTitleFlow(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(testAdminID)

	h.label(testAdminID, labelPanel)
	require.Equal(t, h.tr(textPanel), h.transport.Last(t).Msg.Text)

	h.label(testAdminID, labelAddTitle)
	require.Equal(t, h.tr(textAskTitleName), h.transport.Last(t).Msg.Text)

	for _, answer := range []string{"One Piece", "1100", "Japan", "O'zbek"} {
		h.text(testAdminID, answer)
	}
	require.Equal(t, h.tr(textAskYear), h.transport.Last(t).Msg.Text)

	h.text(testAdminID, "qachondir")
	require.Equal(t, h.tr(textBadYear), h.transport.Last(t).Msg.Text)

	for _, answer := range []string{"1999", "Adventure", "AniDub"} {
		h.text(testAdminID, answer)
	}
	require.Equal(t, h.tr(textAskMedia), h.transport.Last(t).Msg.Text)

	h.media(testAdminID, 20, Media{Kind: MediaVideo, FileID: "long", Duration: 120})
	require.Equal(t, h.tr(textBadMedia), h.transport.Last(t).Msg.Text)

	h.media(testAdminID, 21, Media{Kind: MediaPhoto, FileID: "poster"})
	created := h.transport.Last(t).Msg.Text
	require.True(t, strings.HasPrefix(created, "✅"))

	st, err := h.steps.Get(h.ctx, testAdminID)
	require.NoError(t, err)
	require.True(t, st.IsIdle())

	stats, err := h.catalog.Stats(h.ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Titles)
}

func TestAddEpisodeFlow(t *testing.T) {
	h := newHarness(t, testBotConfig())
	title := h.seedTitle("Bleach", 2)
	h.start(testAdminID)

	h.label(testAdminID, labelAddEpisode)
	h.text(testAdminID, itoa(title.ID))
	require.Equal(t, h.trf(textAskEpisodeVideo, "Bleach"), h.transport.Last(t).Msg.Text)

	h.media(testAdminID, 30, Media{Kind: MediaVideo, FileID: "ep-3"})
	h.media(testAdminID, 31, Media{Kind: MediaVideo, FileID: "ep-4"})
	require.Equal(t, h.trf(textEpisodeAdded, 4), h.transport.Last(t).Msg.Text)

	page, err := h.catalog.EpisodePage(h.ctx, title.ID, 4)
	require.NoError(t, err)
	require.Equal(t, "ep-4", page.Current.MediaRef)
}

func TestBroadcastFlow(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(testAdminID, 2, 3)

	h.label(testAdminID, labelBroadcast)
	require.Equal(t, h.tr(textAskBroadcast), h.transport.Last(t).Msg.Text)

	require.NoError(t, h.engine.Handle(h.ctx, Event{Kind: EventText, UserID: testAdminID, ChatID: testAdminID, Text: "Yangi qism!", MessageID: 555}))
	confirm := h.transport.Last(t)
	require.Equal(t, h.tr(textBroadcastConfirm), confirm.Msg.Text)

	h.press(testAdminID, confirm.MessageID, EncodeToken(ActionBroadcast, "copy"))
	require.Equal(t, h.tr(textBroadcastStarted), h.transport.LastEdit(t).Msg.Text)

	h.broadcasts.Wait()

	relays := h.transport.Relays()
	require.Len(t, relays, 3)
	recipients := map[int64]bool{}
	for _, r := range relays {
		require.Equal(t, int64(testAdminID), r.From)
		require.Equal(t, 555, r.MessageID)
		require.False(t, r.Forward)
		recipients[r.To] = true
	}
	require.Equal(t, map[int64]bool{testAdminID: true, 2: true, 3: true}, recipients)

	report := h.transport.Last(t)
	require.Equal(t, int64(testAdminID), report.ChatID)
	require.True(t, strings.HasPrefix(report.Msg.Text, "✅"))

	h.press(testAdminID, confirm.MessageID, string(ActionStopCast))
	answer := h.transport.LastAnswer(t)
	require.Equal(t, h.tr(textBroadcastIdle), answer.Text)
}

func TestBroadcastCancel(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(testAdminID)

	h.label(testAdminID, labelBroadcast)
	h.text(testAdminID, "salom")
	h.press(testAdminID, 77, EncodeToken(ActionBroadcast, "cancel"))

	require.Equal(t, h.tr(textBroadcastCancel), h.transport.LastEdit(t).Msg.Text)
	require.Empty(t, h.transport.Relays())
}

func TestManageUserCredit(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(testAdminID, 60)

	h.label(testAdminID, labelManageUser)
	h.text(testAdminID, "60")
	card := h.transport.Last(t)
	require.Equal(t, EncodeToken(ActionCredit, "60"), card.Msg.Inline.Buttons()[0].Data)

	h.press(testAdminID, card.MessageID, EncodeToken(ActionCredit, "60"))
	require.Equal(t, h.tr(textAskAmount), h.transport.Last(t).Msg.Text)

	h.text(testAdminID, "-5")
	require.Equal(t, h.tr(textBadAmount), h.transport.Last(t).Msg.Text)

	h.text(testAdminID, "1500")
	balance, err := h.ledger.Balance(h.ctx, 60)
	require.NoError(t, err)
	require.Equal(t, int64(1500), balance.Amount)
	require.Equal(t, h.trf(textBalanceNotify, int64(1500), "so'm"), h.transport.Last(t).Msg.Text)
	require.Equal(t, int64(60), h.transport.Last(t).ChatID)

	h.label(testAdminID, labelManageUser)
	h.text(testAdminID, "60")
	h.press(testAdminID, 1, EncodeToken(ActionDebit, "60"))
	h.text(testAdminID, "5000")
	require.Equal(t, h.tr(textVIPInsufficient), h.transport.Last(t).Msg.Text)

	balance, err = h.ledger.Balance(h.ctx, 60)
	require.NoError(t, err)
	require.Equal(t, int64(1500), balance.Amount)
	_, err = h.ledger.Balance(h.ctx, 9999)
	require.ErrorIs(t, err, ledgerdomain.ErrAccountNotFound)
}

func TestAdminFlowResetForDemotedUser(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(42)
	require.NoError(t, h.steps.Set(h.ctx, 42, stepdomain.Start(stepdomain.FlowAddTitle)))

	h.text(42, "Naruto")

	st, err := h.steps.Get(h.ctx, 42)
	require.NoError(t, err)
	require.True(t, st.IsIdle())
}

func TestAddAdminRequiresOwner(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.start(testAdminID, 7, 8)

	h.label(testAdminID, labelAddAdmin)
	h.text(testAdminID, "7")
	require.Equal(t, h.trf(textAdminAdded, int64(7)), h.transport.Last(t).Msg.Text)
	require.True(t, h.authz.IsAdmin(h.ctx, 7))

	h.label(7, labelAddAdmin)
	require.Equal(t, h.tr(textNoPermission), h.transport.Last(t).Msg.Text)
	require.False(t, h.authz.IsAdmin(h.ctx, 8))
}

func TestJoinRequestIsRecordedSilently(t *testing.T) {
	cfg := testBotConfig()
	cfg.Channels = []config.Channel{{ID: -200, Link: "https://t.me/+req", Mode: config.ChannelModeRequest}}
	h := newHarness(t, cfg)
	h.start(50)
	before := len(h.transport.Sent())

	require.NoError(t, h.engine.Handle(h.ctx, Event{Kind: EventJoinRequest, UserID: 50, ChannelID: -200}))
	require.Len(t, h.transport.Sent(), before)

	h.label(50, labelSearch)
	require.Equal(t, h.tr(textSearchMenu), h.transport.Last(t).Msg.Text)
}
