package bot

import (
	"strings"

	catalogdomain "github.com/smallbiznis/animegate/internal/catalog/domain"
	"github.com/smallbiznis/animegate/internal/config"
	gatedomain "github.com/smallbiznis/animegate/internal/gate/domain"
)

const episodesPerRow = 4

func mainMenu(t texts, admin bool) *ReplyKeyboard {
	kb := &ReplyKeyboard{Rows: [][]string{
		{t.get(labelSearch)},
		{t.get(labelVIP), t.get(labelBalance)},
		{t.get(labelTopUp), t.get(labelGuide)},
		{t.get(labelAds)},
	}}
	if admin {
		kb.Rows = append(kb.Rows, []string{t.get(labelPanel)})
	}
	return kb
}

func adminMenu(t texts) *ReplyKeyboard {
	return &ReplyKeyboard{Rows: [][]string{
		{t.get(labelStats), t.get(labelBroadcast)},
		{t.get(labelAddTitle), t.get(labelAddEpisode)},
		{t.get(labelManageUser), t.get(labelAddAdmin)},
		{t.get(labelBack)},
	}}
}

func backMenu(t texts) *ReplyKeyboard {
	return &ReplyKeyboard{Rows: [][]string{{t.get(labelBack)}}}
}

func searchMenu() *InlineKeyboard {
	kb := &InlineKeyboard{}
	kb.Row(
		InlineButton{Text: "🏷 Nomi orqali", Data: EncodeToken(ActionSearch, "name")},
		InlineButton{Text: "⏱ So'nggi yuklanganlar", Data: string(ActionRecent)},
	)
	kb.Row(
		InlineButton{Text: "💬 Janr orqali", Data: EncodeToken(ActionSearch, "genre")},
		InlineButton{Text: "📌 Kod orqali", Data: EncodeToken(ActionSearch, "code")},
	)
	kb.Row(
		InlineButton{Text: "👁️ Eng ko'p ko'rilgan", Data: string(ActionTop)},
		InlineButton{Text: "📚 Barcha animelar", Data: EncodeToken(ActionAll, "1")},
	)
	return kb
}

func titleListKeyboard(titles []catalogdomain.Title) *InlineKeyboard {
	kb := &InlineKeyboard{}
	for _, title := range titles {
		kb.Row(InlineButton{Text: title.Name, Data: titleToken(title.ID)})
	}
	return kb
}

func titlePageKeyboard(page catalogdomain.TitlePage, t texts) *InlineKeyboard {
	kb := titleListKeyboard(page.Titles)
	nav := []InlineButton{}
	if page.HasPrev {
		nav = append(nav, InlineButton{Text: t.get(textPrev), Data: EncodeToken(ActionAll, itoa(page.Page-1))})
	}
	if page.HasNext {
		nav = append(nav, InlineButton{Text: t.get(textNext), Data: EncodeToken(ActionAll, itoa(page.Page+1))})
	}
	kb.Row(nav...)
	kb.Row(InlineButton{Text: t.get(textClose), Data: string(ActionClose)})
	return kb
}

func titleDetailKeyboard(title catalogdomain.Title, t texts) *InlineKeyboard {
	kb := &InlineKeyboard{}
	return kb.Row(InlineButton{Text: t.get(textDownload), Data: downloadToken(title.ID, 1, 1)})
}

// episodeKeyboard lays out one window of episode buttons. The origin
// episode is the one attached to the message and is rendered inert.
func episodeKeyboard(page catalogdomain.EpisodePage, origin int, admin bool, t texts) *InlineKeyboard {
	kb := &InlineKeyboard{}
	titleID := page.Title.ID

	row := make([]InlineButton, 0, episodesPerRow)
	for _, ep := range page.Episodes {
		btn := InlineButton{Text: itoa(ep.Number), Data: downloadToken(titleID, ep.Number, origin)}
		if ep.Number == origin {
			btn = InlineButton{Text: "[📀] - " + itoa(ep.Number), Data: string(ActionNoop)}
		}
		row = append(row, btn)
		if len(row) == episodesPerRow {
			kb.Row(row...)
			row = make([]InlineButton, 0, episodesPerRow)
		}
	}
	kb.Row(row...)

	if admin && origin > 0 {
		kb.Row(InlineButton{Text: t.format(textDeleteEpisode, origin), Data: deleteToken(titleID, origin, origin)})
	}

	anchor := page.Window.First()
	kb.Row(
		InlineButton{Text: t.get(textPrev), Data: pageToken(titleID, anchor, origin, string(catalogdomain.DirectionPrev))},
		InlineButton{Text: t.get(textClose), Data: string(ActionClose)},
		InlineButton{Text: t.get(textNext), Data: pageToken(titleID, anchor, origin, string(catalogdomain.DirectionNext))},
	)
	return kb
}

func planKeyboard(cfg config.BotConfig, quote func(int) (int64, error), t texts) *InlineKeyboard {
	kb := &InlineKeyboard{}
	row := []InlineButton{}
	for _, days := range cfg.VIP.Plans {
		price, err := quote(days)
		if err != nil {
			continue
		}
		row = append(row, InlineButton{
			Text: t.format(textVIPPlan, days, price, cfg.VIP.Currency),
			Data: EncodeToken(ActionBuy, itoa(days)),
		})
		if len(row) == 2 {
			kb.Row(row...)
			row = []InlineButton{}
		}
	}
	kb.Row(row...)
	return kb
}

// gatePrompt has one button per missing channel, at most one promo link
// and the recheck button carrying the pending title.
func gatePrompt(result gatedomain.Result, pendingTitle int64, t texts) *InlineKeyboard {
	kb := &InlineKeyboard{}
	for i, ch := range result.Missing {
		label := strings.TrimSpace(ch.Title)
		if label == "" {
			label = t.format(textGateChannel, i+1)
		}
		kb.Row(InlineButton{Text: label, URL: ch.Link})
	}
	if result.Promo != nil {
		label := "📺 YouTube"
		if result.Promo.Kind == gatedomain.PromoInstagram {
			label = "📸 Instagram"
		}
		kb.Row(InlineButton{Text: label, URL: result.Promo.URL})
	}
	kb.Row(InlineButton{Text: t.get(textGateRecheck), Data: recheckToken(pendingTitle)})
	return kb
}

func broadcastConfirmKeyboard() *InlineKeyboard {
	kb := &InlineKeyboard{}
	kb.Row(
		InlineButton{Text: "📋 Nusxa", Data: EncodeToken(ActionBroadcast, "copy")},
		InlineButton{Text: "↪️ Forward", Data: EncodeToken(ActionBroadcast, "forward")},
	)
	kb.Row(InlineButton{Text: "❌ Bekor qilish", Data: EncodeToken(ActionBroadcast, "cancel")})
	return kb
}

func broadcastRunningKeyboard() *InlineKeyboard {
	kb := &InlineKeyboard{}
	return kb.Row(InlineButton{Text: "⛔ To'xtatish", Data: string(ActionStopCast)})
}

func manageUserKeyboard(userID int64) *InlineKeyboard {
	kb := &InlineKeyboard{}
	return kb.Row(
		InlineButton{Text: "➕ Pul qo'shish", Data: EncodeToken(ActionCredit, itoa(userID))},
		InlineButton{Text: "➖ Pul ayirish", Data: EncodeToken(ActionDebit, itoa(userID))},
	)
}

func progressBar(percent int) string {
	const cells = 6
	filled := percent * cells / 90
	if filled > cells {
		filled = cells
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", cells-filled)
}
