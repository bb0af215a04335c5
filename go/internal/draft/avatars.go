package draft

// Avatars is the fixed set a seat's avatar is drawn from.
var Avatars = []string{
	"https://www.svgrepo.com/download/3514/american-football.svg",
	"https://www.svgrepo.com/download/58433/american-football-player.svg",
	"https://www.svgrepo.com/download/9002/american-football-jersey.svg",
	"https://www.svgrepo.com/download/205005/american-football-helmet.svg",
	"https://www.svgrepo.com/download/106538/american-football-emblem.svg",
	"https://www.svgrepo.com/download/162507/american-football-stadium.svg",
	"https://www.svgrepo.com/download/150537/american-football.svg",
}

func isKnownAvatar(ref string) bool {
	for _, a := range Avatars {
		if a == ref {
			return true
		}
	}
	return false
}
