package bot

import (
	"fmt"

	"github.com/smallbiznis/animegate/internal/config"
)

// Text keys. Every key can be overridden under bot.texts in bot.yml.
const (
	labelSearch     = "label.search"
	labelVIP        = "label.vip"
	labelBalance    = "label.balance"
	labelTopUp      = "label.topup"
	labelGuide      = "label.guide"
	labelAds        = "label.ads"
	labelPanel      = "label.panel"
	labelBack       = "label.back"
	labelStats      = "label.stats"
	labelAddTitle   = "label.add_title"
	labelAddEpisode = "label.add_episode"
	labelBroadcast  = "label.broadcast"
	labelManageUser = "label.manage_user"
	labelAddAdmin   = "label.add_admin"

	textStart            = "start"
	textNoPermission     = "no_permission"
	textGatePrompt       = "gate.prompt"
	textGateChannel      = "gate.channel"
	textGateRecheck      = "gate.recheck"
	textGateProgress     = "gate.progress"
	textGateNotDetected  = "gate.not_detected"
	textSearchMenu       = "search.menu"
	textAskCode          = "search.ask_code"
	textAskName          = "search.ask_name"
	textAskGenre         = "search.ask_genre"
	textNothingFound     = "search.nothing_found"
	textResults          = "search.results"
	textTitleNotFound    = "title.not_found"
	textTitleCaption     = "title.caption"
	textEpisodeNotFound  = "episode.not_found"
	textEpisodeCaption   = "episode.caption"
	textEpisodeDeleted   = "episode.deleted"
	textDownload         = "button.download"
	textPrev             = "button.prev"
	textNext             = "button.next"
	textClose            = "button.close"
	textNoPrevWindow     = "episode.no_prev"
	textNoNextWindow     = "episode.no_next"
	textDeleteEpisode    = "button.delete_episode"
	textVIPOffer         = "vip.offer"
	textVIPStatus        = "vip.status"
	textVIPExtendAsk     = "vip.extend_ask"
	textVIPExtend        = "button.extend"
	textVIPPlan          = "button.plan"
	textVIPActivated     = "vip.activated"
	textVIPExtended      = "vip.extended"
	textVIPInsufficient  = "vip.insufficient"
	textVIPAdminNotice   = "vip.admin_notice"
	textBalance          = "balance"
	textTopUp            = "topup"
	textGuide            = "guide"
	textAds              = "ads"
	textPanel            = "panel"
	textStats            = "panel.stats"
	textAskTitleName     = "add_title.name"
	textAskEpisodesLabel = "add_title.episodes"
	textAskCountry       = "add_title.country"
	textAskLanguage      = "add_title.language"
	textAskYear          = "add_title.year"
	textBadYear          = "add_title.bad_year"
	textAskGenreField    = "add_title.genre"
	textAskDub           = "add_title.dub"
	textAskMedia         = "add_title.media"
	textBadMedia         = "add_title.bad_media"
	textTitleCreated     = "add_title.created"
	textAskTitleCode     = "add_episode.code"
	textAskEpisodeVideo  = "add_episode.video"
	textEpisodeAdded     = "add_episode.added"
	textAskBroadcast     = "broadcast.ask"
	textBroadcastConfirm = "broadcast.confirm"
	textBroadcastStarted = "broadcast.started"
	textBroadcastBusy    = "broadcast.busy"
	textBroadcastIdle    = "broadcast.idle"
	textBroadcastStopped = "broadcast.stopped"
	textBroadcastCancel  = "broadcast.cancelled"
	textBroadcastReport  = "broadcast.report"
	textAskUserID        = "manage_user.ask_id"
	textUserNotFound     = "manage_user.not_found"
	textUserCard         = "manage_user.card"
	textAskAmount        = "manage_user.ask_amount"
	textBadAmount        = "manage_user.bad_amount"
	textBalanceChanged   = "manage_user.changed"
	textBalanceNotify    = "manage_user.notify"
	textAskAdminID       = "add_admin.ask_id"
	textAdminAdded       = "add_admin.added"
	textBadNumber        = "bad_number"
	textFailed           = "failed"
	textThrottled        = "throttled"
)

var defaultTexts = map[string]string{
	labelSearch:     "🔎 Anime izlash",
	labelVIP:        "💎 VIP",
	labelBalance:    "💰 Hisobim",
	labelTopUp:      "➕ Pul kiritish",
	labelGuide:      "📚 Qo'llanma",
	labelAds:        "💵 Reklama va Homiylik",
	labelPanel:      "🗄 Boshqarish",
	labelBack:       "◀️ Orqaga",
	labelStats:      "📊 Statistika",
	labelAddTitle:   "🎥 Anime qo'shish",
	labelAddEpisode: "📀 Qism qo'shish",
	labelBroadcast:  "✉ Xabar yuborish",
	labelManageUser: "🔎 Foydalanuvchini boshqarish",
	labelAddAdmin:   "📋 Admin qo'shish",

	textStart:            "Assalomu alaykum, %s! Anime kodini yuboring yoki menyudan foydalaning.",
	textNoPermission:     "Sizda bu bo'limga ruxsat yo'q.",
	textGatePrompt:       "Botdan foydalanish uchun quyidagi kanallarga obuna bo'ling yoki so'rov yuboring❗️",
	textGateChannel:      "Kanal %d",
	textGateRecheck:      "✅ Tekshirish",
	textGateProgress:     "⏳ Tekshirilmoqda... %d%%\n%s",
	textGateNotDetected:  "⚠ Obuna aniqlanmadi. Iltimos, kanallarga obuna bo'ling va qayta urinib ko'ring.",
	textSearchMenu:       "Qidiruv turini tanlang:",
	textAskCode:          "📌 Anime kodini kiriting:",
	textAskName:          "Anime nomini yuboring:",
	textAskGenre:         "Janrni yuboring:",
	textNothingFound:     "Hech narsa topilmadi.",
	textResults:          "Natijalar:",
	textTitleNotFound:    "❗ Noto'g'ri ID kiritildi.",
	textTitleCaption:     "🎬 Nomi: %s\n\n🎥 Qismi: %s\n🌍 Davlati: %s\n🇺🇿 Tili: %s\n📆 Yili: %d\n🎞 Janri: %s\n🎙 Dublyaj: %s\n\n🔍 Ko'rishlar: %d\n📌 Kod: %d",
	textEpisodeNotFound:  "❌ Qism topilmadi.",
	textEpisodeCaption:   "%s\n\n%d-qism",
	textEpisodeDeleted:   "🗑 %d-qism o'chirildi.",
	textDownload:         "📥 Yuklab olish",
	textPrev:             "⬅️ Oldingi",
	textNext:             "➡️ Keyingi",
	textClose:            "❌ Yopish",
	textNoPrevWindow:     "Bu birinchi sahifa.",
	textNoNextWindow:     "Bu oxirgi sahifa.",
	textDeleteEpisode:    "🗑 %d-qismni o'chirish",
	textVIPOffer:         "VIP'ga ulanish\n\n• VIP kanal uchun 1 martalik havola beriladi\n• Reklamalarsiz foydalanasiz\n• Majburiy obunalik so'ralmaydi",
	textVIPStatus:        "Siz VIP sotib olgansiz!\n\n⏳ Qolgan kunlar: %d\n📆 Amal qilish muddati %s gacha",
	textVIPExtendAsk:     "❗ Obunani necha kunga uzaytirmoqchisiz?",
	textVIPExtend:        "🗓️ Uzaytirish",
	textVIPPlan:          "%d kun - %d %s",
	textVIPActivated:     "💎 VIP - statusga muvaffaqiyatli o'tdingiz.",
	textVIPExtended:      "💎 VIP - statusni muvaffaqiyatli uzaytirdingiz.",
	textVIPInsufficient:  "Hisobingizda yetarli mablag' mavjud emas!",
	textVIPAdminNotice:   "Foydalanuvchi %d %d kunlik obuna sotib oldi! (%d %s)",
	textBalance:          "#ID: %d\nBalans: %d %s",
	textTopUp:            "Hisobni to'ldirish uchun administratorga murojaat qiling. ID: %d",
	textGuide:            "Anime kodini yuboring yoki qidiruvdan foydalaning. VIP foydalanuvchilar majburiy obunasiz foydalanadi.",
	textAds:              "Reklama va homiylik bo'yicha administratorga murojaat qiling.",
	textPanel:            "Boshqaruv paneli",
	textStats:            "📊 Statistika\n\n👥 Foydalanuvchilar: %d\n💎 VIP: %d\n🎬 Animelar: %d\n📀 Qismlar: %d\n💰 Jami balans: %d %s",
	textAskTitleName:     "Anime nomini kiriting:",
	textAskEpisodesLabel: "Qismlar sonini kiriting:",
	textAskCountry:       "Davlatini kiriting:",
	textAskLanguage:      "Tilini kiriting:",
	textAskYear:          "Yilini kiriting:",
	textBadYear:          "Yil raqam bo'lishi kerak.",
	textAskGenreField:    "Janrini kiriting:",
	textAskDub:           "Dublyaj qilgan studiyani kiriting:",
	textAskMedia:         "Rasm yoki 60 soniyagacha video yuboring:",
	textBadMedia:         "Faqat rasm yoki 60 soniyagacha video qabul qilinadi.",
	textTitleCreated:     "✅ Anime qo'shildi. Kod: %d",
	textAskTitleCode:     "Anime kodini kiriting:",
	textAskEpisodeVideo:  "%s uchun qism videosini yuboring:",
	textEpisodeAdded:     "✅ %d-qism qo'shildi. Keyingisini yuboring yoki orqaga qayting.",
	textAskBroadcast:     "Yuboriladigan xabarni yuboring:",
	textBroadcastConfirm: "Xabar qanday yuborilsin?",
	textBroadcastStarted: "📤 Xabar yuborish boshlandi.",
	textBroadcastBusy:    "⏳ Boshqa xabar yuborilmoqda. Tugashini kuting.",
	textBroadcastIdle:    "Hozir yuborilayotgan xabar yo'q.",
	textBroadcastStopped: "⛔ Yuborish to'xtatildi.",
	textBroadcastCancel:  "Bekor qilindi.",
	textBroadcastReport:  "✅ Yuborildi: %d\n❌ Yuborilmadi: %d\n⏱ %s",
	textAskUserID:        "Foydalanuvchi ID raqamini kiriting:",
	textUserNotFound:     "Foydalanuvchi topilmadi.",
	textUserCard:         "#ID: %d\nStatus: %s\nBalans: %d %s",
	textAskAmount:        "Miqdorni kiriting:",
	textBadAmount:        "Miqdor musbat butun son bo'lishi kerak.",
	textBalanceChanged:   "✅ Balans yangilandi: %d %s",
	textBalanceNotify:    "Hisobingiz o'zgardi. Balans: %d %s",
	textAskAdminID:       "Yangi admin ID raqamini kiriting:",
	textAdminAdded:       "✅ %d admin qilib tayinlandi.",
	textBadNumber:        "Raqam kiriting.",
	textFailed:           "Xatolik yuz berdi. Keyinroq urinib ko'ring.",
	textThrottled:        "Juda tez! Biroz kuting.",
}

// texts resolves configured overrides against the defaults above.
type texts struct {
	cfg config.BotConfig
}

func (t texts) get(key string) string {
	return t.cfg.Text(key, defaultTexts[key])
}

func (t texts) format(key string, args ...any) string {
	return fmt.Sprintf(t.get(key), args...)
}
