package shopify

// GraphQL documents for the Storefront API.
const (
	queryProductByHandle = `query ProductByHandle($handle: String!) {
  product(handle: $handle) {
    id
    title
    variants(first: 10) {
      nodes {
        id
        title
        availableForSale
      }
    }
  }
}`

	mutationCartCreate = `mutation CartCreate($lines: [CartLineInput!]) {
  cartCreate(input: { lines: $lines }) {
    cart {
      id
      checkoutUrl
    }
    userErrors {
      field
      message
    }
  }
}`

	mutationCartLinesAdd = `mutation CartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) {
    cart {
      id
      checkoutUrl
    }
    userErrors {
      field
      message
    }
  }
}`
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// graphQLResponse is the envelope every Storefront API reply uses.
type graphQLResponse[T any] struct {
	Data   *T             `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type cartPayload struct {
	Cart *struct {
		ID          string `json:"id"`
		CheckoutURL string `json:"checkoutUrl"`
	} `json:"cart"`
	UserErrors []userError `json:"userErrors"`
}

type cartCreateData struct {
	CartCreate *cartPayload `json:"cartCreate"`
}

type cartLinesAddData struct {
	CartLinesAdd *cartPayload `json:"cartLinesAdd"`
}

// ProductVariant is a variant node from productByHandle.
type ProductVariant struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	AvailableForSale bool   `json:"availableForSale"`
}

// Product is the subset of a Storefront product the storefront reads.
type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Variants struct {
		Nodes []ProductVariant `json:"nodes"`
	} `json:"variants"`
}

type productByHandleData struct {
	Product *Product `json:"product"`
}
