package notification

const (
	thumbnailSplatfest   = "https://cdn.discordapp.com/attachments/842036323652337690/1259640933893275711/SfOpenSche.png"
	thumbnailBigRun      = "https://cdn.wikimg.net/en/splatoonwiki/images/7/73/S3_Badge_Big_Run_Top_50_Percent.png"
	thumbnailEggstraWork = "https://cdn.wikimg.net/en/splatoonwiki/images/3/36/S3_Badge_Eggstra_Work_Top_5_Percent.png"
	thumbnailRandom      = "https://splatoon3.ink/assets/splatnet/v2/ui_img/473fffb2442075078d8bb7125744905abdeae651b6a5b7453ae295582e45f7d1_0.png"
	thumbnailGolden      = thumbnailBigRun

	avatarSplatfest = thumbnailSplatfest
	avatarGrizzco   = "https://cdn.wikimg.net/en/splatoonwiki/images/8/8a/S3_Brand_Grizzco.png"
)

const (
	TitleSplatfest     = "A Splatfest has been announced!"
	TitleBigRun        = "A Big Run alert has been broadcasted!"
	TitleEggstraWork   = "Eggstra Workers are needed at Grizzco!"
	TitleSingleRandom  = "A Single Random Rotation has been added to the schedule!"
	TitlePartialRandom = "A Partial Random Rotation has been added to the schedule!"
	TitleFullRandom    = "A Random Rotation has been added to the schedule!"
	TitleGolden        = "A Golden Rotation has been added to the schedule!"
)

const (
	ColorSplatfest = 0x2f5dd4
	ColorBigRun    = 0xb322ff
	ColorRandom    = 0x00d82d
	ColorGolden    = 0xd18e14
)

// Audience selects which role a notification mentions.
type Audience int

const (
	AudienceSplatfest Audience = iota
	AudienceSalmonRun
)

// Mentions holds the mention strings (e.g. "<@&1234>") per audience.
// Empty strings mean no mention.
type Mentions struct {
	Splatfest string
	SalmonRun string
}

func (m Mentions) For(n Notification) string {
	switch AudienceOf(n) {
	case AudienceSplatfest:
		return m.Splatfest
	default:
		return m.SalmonRun
	}
}

func Title(n Notification) string {
	switch n := n.(type) {
	case Splatfest:
		return TitleSplatfest
	case BigRun:
		return TitleBigRun
	case EggstraWork:
		return TitleEggstraWork
	case Random:
		switch len(n.Weapons) {
		case 0, 1:
			return TitleSingleRandom
		case 2, 3:
			return TitlePartialRandom
		default:
			return TitleFullRandom
		}
	case Golden:
		return TitleGolden
	}
	return ""
}

func Color(n Notification) int {
	switch n.(type) {
	case Splatfest:
		return ColorSplatfest
	case BigRun:
		return ColorBigRun
	case Random:
		return ColorRandom
	case EggstraWork, Golden:
		return ColorGolden
	}
	return 0
}

func Thumbnail(n Notification) string {
	switch n.(type) {
	case Splatfest:
		return thumbnailSplatfest
	case BigRun:
		return thumbnailBigRun
	case EggstraWork:
		return thumbnailEggstraWork
	case Random:
		return thumbnailRandom
	case Golden:
		return thumbnailGolden
	}
	return ""
}

func AudienceOf(n Notification) Audience {
	if _, ok := n.(Splatfest); ok {
		return AudienceSplatfest
	}
	return AudienceSalmonRun
}

// Avatar and Username give the webhook sender identity.
func Avatar(n Notification) string {
	if AudienceOf(n) == AudienceSplatfest {
		return avatarSplatfest
	}
	return avatarGrizzco
}

func Username(n Notification) string {
	if AudienceOf(n) == AudienceSplatfest {
		return "Fax Machine"
	}
	return "Grizzco"
}
