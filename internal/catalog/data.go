package catalog

// Default returns the storefront's static catalog.
func Default() *Catalog {
	c, err := New(defaultProducts()...)
	if err != nil {
		panic("catalog: invalid default data: " + err.Error())
	}
	return c
}

func defaultProducts() []Product {
	return []Product{
		Diffuser{
			Base: Info{
				ID:             "stone-diffuser",
				Name:           "Stone Diffuser",
				Price:          4000,
				CompareAtPrice: 12999,
				Badge:          BadgeBestseller,
				Description:    "Timeless design meets aromatherapy. Sleek ceramic finish and ultrasonic, whisper-quiet misting.",
				Image:          "/DiffProductShot.png",
				Handle:         "auradroplet",
				VariantRef:     "gid://shopify/ProductVariant/50647405822230",
			},
			DiscountPercent: 25,
		},
		Essence{
			Base: Info{
				ID:          "rose-petal-oil",
				Name:        "Rose Petal Essential Oil",
				Price:       999,
				Description: "Luxurious rose essence with geranium and musk notes.",
				Image:       "/RoseProduct.jpg",
				Handle:      "rose-petal-essential-oil",
				VariantRef:  "gid://shopify/ProductVariant/50647404806422",
			},
			Notes:    "Rose · Geranium · Musk",
			VolumeML: 15,
		},
		Essence{
			Base: Info{
				ID:          "lavender-oil",
				Name:        "Lavender Essential Oil",
				Price:       999,
				Badge:       BadgeBestseller,
				Description: "Calming lavender with bergamot and chamomile. Perfect for relaxation and restful sleep.",
				Image:       "/Lavender.jpg",
				Handle:      "lavender-essential-oil",
				VariantRef:  "gid://shopify/ProductVariant/50647396581654",
			},
			Notes:    "Lavender · Bergamot · Chamomile",
			VolumeML: 15,
		},
		Essence{
			Base: Info{
				ID:          "jasmine-oil",
				Name:        "Jasmine Essential Oil",
				Price:       999,
				Description: "Exotic white florals with bright citrus peel.",
				Image:       "/Jasmine.jpg",
				Handle:      "jasmine-essential-oil",
				VariantRef:  "gid://shopify/ProductVariant/50647401922838",
			},
			Notes:    "White Florals · Citrus Peel",
			VolumeML: 15,
		},
		Essence{
			Base: Info{
				ID:          "mint-oil",
				Name:        "Mint Leaf Essential Oil",
				Price:       999,
				Description: "Crisp peppermint with basil and green tea.",
				Image:       "/Mint.jpg",
				Handle:      "mint-leaf-essential-oil",
				VariantRef:  "gid://shopify/ProductVariant/50647402479894",
			},
			Notes:    "Peppermint · Basil · Green Tea",
			VolumeML: 15,
		},
		Essence{
			Base: Info{
				ID:          "vanilla-oil",
				Name:        "Vanilla Essential Oil",
				Price:       999,
				Badge:       BadgeNew,
				Description: "Rich vanilla bean with warm amber and sandalwood.",
				Image:       "/Vanilla.jpg",
				Handle:      "vanilla-essential-oil",
				VariantRef:  "gid://shopify/ProductVariant/50647401234710",
			},
			Notes:    "Vanilla · Amber · Sandalwood",
			VolumeML: 15,
		},
		Essence{
			Base: Info{
				ID:          "ocean-mist-oil",
				Name:        "Ocean Mist Essential Oil",
				Price:       999,
				Description: "Coastal breeze captured in a bottle.",
				Image:       "/Ocean.jpg",
				Handle:      "ocean-mist-essential-oil",
				VariantRef:  "gid://shopify/ProductVariant/50647404413206",
			},
			Notes:    "Sea Salt · Driftwood · Marine",
			VolumeML: 15,
		},
		// Variant resolved by handle at startup when RESOLVE_VARIANTS is set.
		Essence{
			Base: Info{
				ID:          "sandalwood-oil",
				Name:        "Sandalwood Essential Oil",
				Price:       999,
				Description: "Warm woods with creamy depth.",
				Image:       "/auradroplet-hero.jpg",
				Handle:      "sandalwood-essential-oil",
			},
			Notes:    "Amber · Cedar · Vanilla",
			VolumeML: 15,
		},
	}
}
