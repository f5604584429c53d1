package room

// Word lists for GenerateID. Words are short and unambiguous when read aloud
// so a room id can be passed over a phone call.
var animals = []string{
	"otter", "panda", "koala", "fox", "hedgehog", "beaver", "heron", "lynx", "marmot", "puffin",
	"walrus", "badger", "gecko", "ibis", "jackal", "lemur", "moose", "newt", "orca", "quail",
}

var dishes = []string{
	"waffle", "ramen", "taco", "curry", "paella", "risotto", "dumpling", "pierogi", "falafel", "samosa",
	"gnocchi", "fondue", "kebab", "noodle", "pancake", "tamale", "bagel", "crepe", "muffin", "pretzel",
}

var adjectives = []string{
	"tiny", "sleepy", "fluffy", "cheery", "jolly", "cozy", "shiny", "golden", "silver", "crimson",
	"brave", "calm", "swift", "quiet", "bouncy", "plucky", "merry", "sunny", "misty", "nimble",
}

var places = []string{
	"canyon", "meadow", "harbor", "orchard", "lagoon", "summit", "glacier", "prairie", "delta", "fjord",
	"valley", "island", "forest", "dune", "ridge", "marsh", "cove", "plateau", "grove", "reef",
}

var sky = []string{
	"comet", "nebula", "orbit", "aurora", "eclipse", "meteor", "zenith", "quasar", "pulsar", "nova",
	"stardust", "sunbeam", "moonlit", "twilight", "galaxy", "cosmos", "equinox", "solstice", "halo", "lumen",
}

var extras = []string{
	"lantern", "pebble", "thimble", "button", "rocket", "compass", "anchor", "kettle", "ribbon", "marble",
	"teacup", "feather", "whistle", "locket", "sprocket", "candle", "parcel", "quill", "saddle", "tassel",
}
